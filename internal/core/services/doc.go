// Package services contains the application business logic.
// Services orchestrate domain operations using driven ports, and are
// exposed to UI surfaces through driving ports.
package services
