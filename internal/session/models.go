package session

import (
	"encoding/json"
	"fmt"

	"pitchlog/internal/store"
)

// Session is one calendar day's player profile and match context. Profile
// fields are kept as entered text.
type Session struct {
	ID                string `json:"id,omitempty"`
	Date              string `json:"date"`
	Time              string `json:"time"`
	PlayerName        string `json:"playerName"`
	Age               string `json:"age"`
	Club              string `json:"club"`
	Team              string `json:"team"`
	Level             string `json:"level"`
	Position          string `json:"position"`
	YourPosition      string `json:"yourPosition,omitempty"`
	RightFooter       string `json:"rightFooter,omitempty"`
	LeftFooter        string `json:"leftFooter,omitempty"`
	GameNumber        string `json:"gameNumber"`
	TotalYearsPlaying string `json:"totalYearsPlaying"`
	TotalHoursTrained string `json:"totalHoursTrained"`
	TotalSessions     string `json:"totalSessions,omitempty"`
	TotalGames        string `json:"totalGames,omitempty"`
	TotalGoals        string `json:"totalGoals,omitempty"`
	TotalPenalties    string `json:"totalPenalties,omitempty"`
	CreatedAt         int64  `json:"createdAt"`
}

// SessionPatch holds a partial session update; nil fields are left alone.
type SessionPatch struct {
	Date              *string `json:"date,omitempty"`
	Time              *string `json:"time,omitempty"`
	PlayerName        *string `json:"playerName,omitempty"`
	Age               *string `json:"age,omitempty"`
	Club              *string `json:"club,omitempty"`
	Team              *string `json:"team,omitempty"`
	Level             *string `json:"level,omitempty"`
	Position          *string `json:"position,omitempty"`
	YourPosition      *string `json:"yourPosition,omitempty"`
	RightFooter       *string `json:"rightFooter,omitempty"`
	LeftFooter        *string `json:"leftFooter,omitempty"`
	GameNumber        *string `json:"gameNumber,omitempty"`
	TotalYearsPlaying *string `json:"totalYearsPlaying,omitempty"`
	TotalHoursTrained *string `json:"totalHoursTrained,omitempty"`
	TotalSessions     *string `json:"totalSessions,omitempty"`
	TotalGames        *string `json:"totalGames,omitempty"`
	TotalGoals        *string `json:"totalGoals,omitempty"`
	TotalPenalties    *string `json:"totalPenalties,omitempty"`
}

type Quality string

const (
	Positive Quality = "Positive"
	Negative Quality = "Negative"
)

// Touch is one logged action. Touches are never updated.
type Touch struct {
	ID         string  `json:"id,omitempty"`
	SessionID  string  `json:"sessionId"`
	ActionType string  `json:"actionType"`
	Quality    Quality `json:"quality"`
	Timestamp  int64   `json:"timestamp"`
}

type Formation struct {
	TeamName string            `json:"teamName"`
	Date     string            `json:"date"`
	Players  map[string]string `json:"players"`
}

type AttendanceMetadata struct {
	Date        string `json:"date"`
	Game        string `json:"game"`
	Training    string `json:"training"`
	Tryout      string `json:"tryout"`
	Evaluation  string `json:"evaluation"`
	Team        string `json:"team"`
	SessionType string `json:"sessionType"`
}

type AttendanceRecord struct {
	ID        int             `json:"id"`
	LastName  string          `json:"lastName"`
	FirstName string          `json:"firstName"`
	Age       string          `json:"age"`
	Position  string          `json:"position"`
	Grades    map[string]bool `json:"grades"`
}

type Attendance struct {
	Metadata AttendanceMetadata `json:"metadata"`
	Records  []AttendanceRecord `json:"records"`
}

// Reflection is the single qualitative document kept per session.
type Reflection struct {
	ID                   string                    `json:"id,omitempty"`
	SessionID            string                    `json:"sessionId"`
	WellDoneTags         []string                  `json:"wellDoneTags,omitempty"`
	PlayerName           string                    `json:"playerName,omitempty"`
	PlayerAge            string                    `json:"playerAge,omitempty"`
	AchievedGoal         string                    `json:"achievedGoal,omitempty"`
	WhatLearned          string                    `json:"whatLearned,omitempty"`
	WhatWouldChange      string                    `json:"whatWouldChange,omitempty"`
	DetailedPerformance  map[string]int            `json:"detailedPerformance,omitempty"`
	DetailedEvaluation   map[string]map[string]int `json:"detailedEvaluation,omitempty"`
	EvaluatedBy          string                    `json:"evaluatedBy,omitempty"`
	PlayerEvaluationName string                    `json:"playerEvaluationName,omitempty"`
	PlayerEvaluationAge  string                    `json:"playerEvaluationAge,omitempty"`
	Formation            *Formation                `json:"formation,omitempty"`
	Attendance           *Attendance               `json:"attendance,omitempty"`
}

// ReflectionPatch replaces whole top-level sections. Nil sections are left
// alone; a section that is set replaces the stored one entirely, so callers
// changing one rating must send the full map.
type ReflectionPatch struct {
	WellDoneTags         *[]string                  `json:"wellDoneTags,omitempty"`
	PlayerName           *string                    `json:"playerName,omitempty"`
	PlayerAge            *string                    `json:"playerAge,omitempty"`
	AchievedGoal         *string                    `json:"achievedGoal,omitempty"`
	WhatLearned          *string                    `json:"whatLearned,omitempty"`
	WhatWouldChange      *string                    `json:"whatWouldChange,omitempty"`
	DetailedPerformance  *map[string]int            `json:"detailedPerformance,omitempty"`
	DetailedEvaluation   *map[string]map[string]int `json:"detailedEvaluation,omitempty"`
	EvaluatedBy          *string                    `json:"evaluatedBy,omitempty"`
	PlayerEvaluationName *string                    `json:"playerEvaluationName,omitempty"`
	PlayerEvaluationAge  *string                    `json:"playerEvaluationAge,omitempty"`
	Formation            *Formation                 `json:"formation,omitempty"`
	Attendance           *Attendance                `json:"attendance,omitempty"`
}

// Rating bounds. A performance score of 0 means not rated.
const (
	MaxPerformance = 10
	MinEvaluation  = 1
	MaxEvaluation  = 4
)

func (p ReflectionPatch) Validate() error {
	if p.DetailedPerformance != nil {
		for metric, v := range *p.DetailedPerformance {
			if v < 0 || v > MaxPerformance {
				return fmt.Errorf("%w: %s rated %d, want 0-%d", ErrInvalidPatch, metric, v, MaxPerformance)
			}
		}
	}
	if p.DetailedEvaluation != nil {
		for category, skills := range *p.DetailedEvaluation {
			for skill, v := range skills {
				if v < MinEvaluation || v > MaxEvaluation {
					return fmt.Errorf("%w: %s/%s rated %d, want %d-%d", ErrInvalidPatch, category, skill, v, MinEvaluation, MaxEvaluation)
				}
			}
		}
	}
	return nil
}

// Ptr returns a pointer to v, for filling patches.
func Ptr[T any](v T) *T { return &v }

// toRecord encodes v and decodes it back as a record, so only fields v would
// serialize end up in the result.
func toRecord(v any) (store.Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var rec store.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func fromRecord[T any](rec store.Record) (T, error) {
	var out T
	data, err := json.Marshal(rec)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(data, &out)
	return out, err
}

func fromRecords[T any](recs []store.Record) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, r := range recs {
		v, err := fromRecord[T](r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
