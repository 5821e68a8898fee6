package models

// Row is a line of the merged session list. It is either an ActiveRow or a TerminatedRow.
type Row interface {
	Session() Session
	row()
}

// ActiveRow wraps a session from the live store
type ActiveRow struct {
	S Session
}

// TerminatedRow wraps an archived session
type TerminatedRow struct {
	S TerminatedSession
}

func (r ActiveRow) Session() Session     { return r.S }
func (r TerminatedRow) Session() Session { return r.S }

func (ActiveRow) row()     {}
func (TerminatedRow) row() {}
