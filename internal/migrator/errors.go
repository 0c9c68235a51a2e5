package migrator

import "fmt"

// AppNameRequiredError is returned when a Plan request names a migration but
// not an app.
type AppNameRequiredError struct{}

func (e *AppNameRequiredError) Error() string {
	return "migrator: app name required when migration name is given"
}

// UnknownAppError is returned when a Plan request's target app does not
// appear in the generated plan.
type UnknownAppError struct {
	App string
}

func (e *UnknownAppError) Error() string {
	return fmt.Sprintf("migrator: unknown app %q", e.App)
}

// UnknownMigrationError is returned when a Plan request's target migration
// does not appear in the generated plan's matching app.
type UnknownMigrationError struct {
	App  string
	Name string
}

func (e *UnknownMigrationError) Error() string {
	return fmt.Sprintf("migrator: unknown migration %q in app %q", e.Name, e.App)
}

// PlanConstructionFailureError is returned when the graph cannot be
// linearised: a cycle in parents/run_before, or an unsatisfiable precedence
// constraint.
type PlanConstructionFailureError struct {
	// Remaining lists the migrations that could not be placed.
	Remaining []ID
}

func (e *PlanConstructionFailureError) Error() string {
	return fmt.Sprintf("migrator: failed to construct plan, %d migration(s) unplaceable (cycle or parent/run_before contradiction): %v", len(e.Remaining), e.Remaining)
}

// ConflictingReplacementError is returned when both a replacer and at least
// one of its replaced migrations are recorded as applied.
type ConflictingReplacementError struct {
	Replacer ID
	Replaced ID
}

func (e *ConflictingReplacementError) Error() string {
	return fmt.Sprintf("migrator: %s and the migration it replaces, %s, are both marked applied", e.Replacer, e.Replaced)
}

// DatabaseFailureError wraps any underlying driver error from table setup,
// lock acquisition, tracking I/O, an Operation, or a transaction commit.
type DatabaseFailureError struct {
	Op    string
	Cause error
}

func (e *DatabaseFailureError) Error() string {
	return fmt.Sprintf("migrator: database failure during %s: %v", e.Op, e.Cause)
}

func (e *DatabaseFailureError) Unwrap() error {
	return e.Cause
}

// EnvMissingError is surfaced by convenience constructors that read
// connection info from the environment.
type EnvMissingError struct {
	Name string
}

func (e *EnvMissingError) Error() string {
	return fmt.Sprintf("migrator: required environment variable %q is not set", e.Name)
}

// ConfigConversionFailureError is surfaced by convenience constructors when
// an environment value cannot be converted to the type a config field
// expects.
type ConfigConversionFailureError struct {
	Field string
	Cause error
}

func (e *ConfigConversionFailureError) Error() string {
	return fmt.Sprintf("migrator: failed to convert config field %q: %v", e.Field, e.Cause)
}

func (e *ConfigConversionFailureError) Unwrap() error {
	return e.Cause
}

func dbFail(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return &DatabaseFailureError{Op: op, Cause: cause}
}
