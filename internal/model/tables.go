package model

// Tables lists every persisted model in migration order.
func Tables() []any {
	return []any{
		&User{},
		&Project{},
		&Scope{},
		&Proposal{},
		&ChatTurn{},
		&Lesson{},
		&DailyReport{},
		&ProjectFile{},
		&ErrorReport{},
	}
}
