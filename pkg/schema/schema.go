// Package schema holds the persistent data model:
// User, CodingJob, JobSet, Unit, JobSetUnit, JobUser and Annotation, plus
// the embedded Rules and Conditional structures. The engine treats
// codebook/content/annotation payloads as opaque JSON and never inspects
// them beyond what conditionals.Evaluate needs.
package schema

import "time"

// Ruleset selects the unit-assignment strategy for a JobSet.
type Ruleset string

const (
	RulesetCrowdCoding Ruleset = "crowdcoding"
	RulesetFixedSet    Ruleset = "fixedset"
)

// UnitType controls conditional defaults.
type UnitType string

const (
	UnitTypeCode   UnitType = "code"
	UnitTypeTrain  UnitType = "train"
	UnitTypeTest   UnitType = "test"
	UnitTypeSurvey UnitType = "survey"
	// UnitTypeScreen has a dedicated conditionals.Defaults entry
	// (failAction=block) but is not one of the types job creation
	// validation accepts; a unit can only reach it by being written
	// directly rather than through the creation payload.
	UnitTypeScreen UnitType = "screen"
)

// Position pins a unit to the start/end of a coder's sequence.
type Position string

const (
	PositionNone Position = "none"
	PositionPre  Position = "pre"
	PositionPost Position = "post"
)

// AnnotationStatus drives C4/C5 scheduling precedence.
type AnnotationStatus string

const (
	StatusInProgress AnnotationStatus = "IN_PROGRESS"
	StatusDone       AnnotationStatus = "DONE"
	StatusRetry      AnnotationStatus = "RETRY"
)

// User is a registered principal. Password hashing and registration are
// boundary concerns (internal/auth); this struct only carries what the
// engine needs to authorize and attribute work.
type User struct {
	ID             int64   `db:"id" json:"id"`
	Name           string  `db:"name" json:"name"`
	Email          *string `db:"email" json:"email,omitempty"`
	IsAdmin        bool    `db:"is_admin" json:"isAdmin"`
	RestrictedJob  *int64  `db:"restricted_job" json:"restrictedJob,omitempty"`
	PasswordHash   *string `db:"password_hash" json:"-"`
}

// HasRestriction reports whether this user may only code a single job
// (e.g. a guest minted through the job-token flow).
func (u *User) HasRestriction() bool {
	return u != nil && u.RestrictedJob != nil
}

// CodingJob is the top-level unit of work a researcher uploads.
type CodingJob struct {
	ID         int64     `db:"id" json:"id"`
	Title      string    `db:"title" json:"title"`
	CreatorID  int64     `db:"creator_id" json:"creatorId"`
	Restricted bool      `db:"restricted" json:"restricted"`
	Archived   bool      `db:"archived" json:"archived"`
	Created    time.Time `db:"created" json:"created"`
}

// Rules is embedded in every JobSet and discriminates FixedSet vs
// CrowdCoding behavior.
type Rules struct {
	Ruleset           Ruleset `json:"ruleset"`
	CanSeekBackwards  bool    `json:"canSeekBackwards"`
	CanSeekForwards   bool    `json:"canSeekForwards"`
	UnitsPerCoder     *int    `json:"unitsPerCoder,omitempty"`
	Randomize         bool    `json:"randomize,omitempty"`
	ShowDamage        bool    `json:"showDamage,omitempty"`
	HealDamage        bool    `json:"healDamage,omitempty"`
	MaxDamage         *float64 `json:"maxDamage,omitempty"`
}

// DefaultRules fills in the defaults for Rules: can_seek_backwards
// defaults true, can_seek_forwards defaults false.
func DefaultRules() Rules {
	return Rules{
		Ruleset:          RulesetFixedSet,
		CanSeekBackwards: true,
		CanSeekForwards:  false,
	}
}

// JobSet is a variant of a job (codebook/rules) a coder is bound to once.
type JobSet struct {
	ID          int64  `db:"id" json:"id"`
	CodingJobID int64  `db:"codingjob_id" json:"codingJobId"`
	Name        string `db:"name" json:"name"`
	Codebook    JSON   `db:"codebook" json:"codebook,omitempty"`
	Rules       Rules  `db:"-" json:"rules"`
	RulesRaw    JSON   `db:"rules" json:"-"`
	Debriefing  JSON   `db:"debriefing" json:"debriefing,omitempty"`
}

// Unit is a single candidate text. Content is opaque.
type Unit struct {
	ID            int64    `db:"id" json:"id"`
	CodingJobID   int64    `db:"codingjob_id" json:"codingJobId"`
	ExternalID    string   `db:"external_id" json:"externalId"`
	Content       JSON     `db:"content" json:"content,omitempty"`
	Conditionals  JSON     `db:"conditionals" json:"conditionals,omitempty"`
	UnitType      UnitType `db:"unit_type" json:"unitType"`
	Position      Position `db:"position" json:"position"`
}

// HasConditionals reports whether the unit carries a non-empty conditionals array.
func (u *Unit) HasConditionals() bool {
	return u != nil && !u.Conditionals.IsNull() && string(u.Conditionals) != "[]"
}

// JobSetUnit is the membership of a Unit in a JobSet.
type JobSetUnit struct {
	ID              int64  `db:"id" json:"id"`
	JobSetID        int64  `db:"jobset_id" json:"jobsetId"`
	UnitID          int64  `db:"unit_id" json:"unitId"`
	FixedIndex      *int   `db:"fixed_index" json:"fixedIndex,omitempty"`
	HasConditionals bool   `db:"has_conditionals" json:"hasConditionals"`
	Blocked         bool   `db:"blocked" json:"blocked"`
	Coders          int    `db:"coders" json:"coders"`
}

// JobUser binds a coder to a job and its chosen jobset.
type JobUser struct {
	ID          int64   `db:"id" json:"id"`
	UserID      int64   `db:"user_id" json:"userId"`
	CodingJobID int64   `db:"codingjob_id" json:"codingJobId"`
	JobSetID    *int64  `db:"jobset_id" json:"jobsetId,omitempty"`
	CanCode     bool    `db:"can_code" json:"canCode"`
	CanEdit     bool    `db:"can_edit" json:"canEdit"`
	Damage      float64 `db:"damage" json:"damage"`
	Status      string  `db:"status" json:"status"`
}

// Annotation is a coder's in-flight or finished answer for one unit.
type Annotation struct {
	ID          int64            `db:"id" json:"id"`
	CodingJobID int64            `db:"codingjob_id" json:"codingJobId"`
	UnitID      int64            `db:"unit_id" json:"unitId"`
	CoderID     int64            `db:"coder_id" json:"coderId"`
	JobSetID    int64            `db:"jobset_id" json:"jobsetId"`
	UnitIndex   int              `db:"unit_index" json:"unitIndex"`
	Status      AnnotationStatus `db:"status" json:"status"`
	Modified    time.Time        `db:"modified" json:"modified"`
	Payload     JSON             `db:"annotation" json:"annotation,omitempty"`
	Damage      float64          `db:"damage" json:"damage"`
	Report      JSON             `db:"report" json:"report,omitempty"`
}

// AnnotationItem is one tagged value inside an Annotation payload, the unit
// conditionals.Evaluate operates on.
type AnnotationItem struct {
	Variable string      `json:"variable"`
	Field    *string     `json:"field,omitempty"`
	Offset   *int        `json:"offset,omitempty"`
	Length   *int        `json:"length,omitempty"`
	Value    interface{} `json:"value"`
}

// Condition is one candidate match inside a Conditional.
type Condition struct {
	Value      interface{} `json:"value"`
	Operator   string      `json:"operator,omitempty"` // ==, !=, <, <=, >, >=; default ==
	Field      *string     `json:"field,omitempty"`
	Offset     *int        `json:"offset,omitempty"`
	Length     *int        `json:"length,omitempty"`
	Damage     *float64    `json:"damage,omitempty"`
	Submessage *string     `json:"submessage,omitempty"`
}

// Conditional is a declarative gold/training rule on a Unit.
type Conditional struct {
	Variable   string      `json:"variable"`
	Conditions []Condition `json:"conditions"`
	OnSuccess  *string     `json:"onSuccess,omitempty"`
	OnFail     *string     `json:"onFail,omitempty"`
	Message    *string     `json:"message,omitempty"`
	Damage     *float64    `json:"damage,omitempty"`
}
