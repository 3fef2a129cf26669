package dto

import "github.com/lindenworks/studio-ops-api/internal/models"

// PatternQuery filters the learned pattern listing.
type PatternQuery struct {
	Type            models.PatternType `form:"type"`
	TargetReference string             `form:"targetReference"`
	MinBoost        *float64           `form:"minBoost"`
	Page            int                `form:"page"`
	PageSize        int                `form:"pageSize"`
}

// PatternMatchQuery is the generator's lookup: a sender address and/or
// candidate keywords extracted from a new piece of correspondence.
type PatternMatchQuery struct {
	Sender   string   `form:"sender"`
	Keywords []string `form:"keyword"`
}
