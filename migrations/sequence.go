package migrations

import "github.com/pthm/schemaward/pkg/migrator"

var sequence migrator.Sequence

func register(u *migrator.Unit) {
	sequence.MustRegister(u)
}

// Sequence returns every registered unit.
func Sequence() *migrator.Sequence {
	return &sequence
}
