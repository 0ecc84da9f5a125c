// Package services defines the shared error taxonomy used to classify
// failures from external tools and request validation.
package services
