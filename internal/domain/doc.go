// Package domain defines the persisted entities of the guild store
// (applications, XP records, cups, admins), the application status machine,
// and the error kinds shared across services.
package domain
