package models

import (
	"encoding/json"
	"time"
)

// SessionResult is the database row for one completed session.
type SessionResult struct {
	ID               int             `gorm:"primaryKey" json:"id"`
	UserName         string          `gorm:"index" json:"user"`
	ModeID           int             `gorm:"index" json:"mode"`
	ShortName        string          `json:"shortName"`
	Back             int             `json:"back"`
	Percent          int             `json:"percent"`
	TicksPerTrial    int             `json:"ticksPerTrial"`
	TotalTrials      int             `json:"totalTrials"`
	Manual           bool            `json:"manual"`
	SessionNumber    int             `json:"sessionNumber"`
	DurationSeconds  float64         `json:"durationSeconds"`
	CategoryPercents json.RawMessage `gorm:"type:text" json:"categoryPercents"`
	PlayedAt         time.Time       `gorm:"index" json:"playedAt"`
	CreatedAt        time.Time       `json:"-"`
}

// TrialEvent is one modality of one trial within a stored session.
type TrialEvent struct {
	ID         int     `gorm:"primaryKey" json:"-"`
	ResultID   int     `gorm:"index" json:"resultId"`
	Trial      int     `json:"trial"`
	Modality   string  `json:"modality"`
	Value      int     `json:"value"`
	BackValue  *int    `json:"backValue"` // nil during warm-up
	Pressed    bool    `json:"pressed"`
	ReactionMS int64   `json:"reactionMs,omitempty"`
	Operation  *string `json:"operation,omitempty"`
	Answer     *string `json:"answer,omitempty"`
	Outcome    string  `json:"outcome"`
}
