package config

import "fmt"

// NotFoundError indicates the base configuration document is absent.
// It aborts resolution; there is no fallback without a base document.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("configuration file not found: %s", e.Path)
}

// KeyMissingError indicates a dotted key path is absent from the resolved
// document and no default was supplied.
type KeyMissingError struct {
	Path string
}

func (e *KeyMissingError) Error() string {
	return fmt.Sprintf("configuration key not found: %s", e.Path)
}

// SecretMissingError indicates a named secret binding was consulted but has
// no value. Secrets are checked lazily at read time, so resolution succeeds
// even when a secret is absent.
type SecretMissingError struct {
	Name string
}

func (e *SecretMissingError) Error() string {
	return fmt.Sprintf("secret not set: %s", e.Name)
}

// TypeError indicates a key exists but holds a value of the wrong type for
// the typed accessor that was used.
type TypeError struct {
	Path string
	Want string
	Got  interface{}
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("configuration key %s: expected %s, got %T", e.Path, e.Want, e.Got)
}
