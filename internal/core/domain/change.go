package domain

import (
	"slices"
	"time"
)

// ChangeEntity names a table touched by a committed write.
type ChangeEntity string

const (
	ChangePeriods  ChangeEntity = "periods"
	ChangeExpenses ChangeEntity = "expenses"
)

// ChangeEvent is emitted by a gateway once per committed atomic block that wrote something.
type ChangeEvent struct {
	Entities    []ChangeEntity `json:"entities"`
	CommittedAt time.Time      `json:"committedAt"`
}

// Touches reports whether the event concerns the given entity.
func (e ChangeEvent) Touches(entity ChangeEntity) bool {
	return slices.Contains(e.Entities, entity)
}
