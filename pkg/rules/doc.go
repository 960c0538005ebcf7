// Package rules implements the file selection engine. A profile's rules are
// triples of (field, operator, value) combined AND-wise into rule sets and
// OR-wise into rule groups. Global exclude groups override inclusion, and
// explicit always lists bypass rule evaluation entirely.
package rules
