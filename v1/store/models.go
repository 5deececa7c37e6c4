package store

import (
	"time"

	"github.com/sakaicontrib/evaluation-sub013/v1/lifecycle"
)

// ResultsSharing is the visibility policy for evaluation results.
type ResultsSharing string

const (
	SharingPrivate ResultsSharing = "private"
	SharingVisible ResultsSharing = "visible"
	SharingShared  ResultsSharing = "shared"
	SharingPublic  ResultsSharing = "public"
)

// Evaluation is the lifecycle-managed entity. Dates other than the start
// date may be absent; an absent stop date means zero grace period and an
// absent view date means results are viewable immediately on close.
type Evaluation struct {
	ID      int64  `gorm:"primaryKey;autoIncrement"`
	Title   string `gorm:"size:255"`
	OwnerID string `gorm:"size:190;index"`

	StartDate           *time.Time
	DueDate             *time.Time
	StopDate            *time.Time
	ViewDate            *time.Time
	StudentsViewDate    *time.Time
	InstructorsViewDate *time.Time

	ReminderDays   int
	ResultsSharing ResultsSharing `gorm:"size:16;default:private"`

	// Partial marks an evaluation still being assembled by the setup
	// workflow; Deleted is the logical-removal tombstone.
	Partial bool
	Deleted bool `gorm:"index"`
	Locked  bool

	// InstructorsCanAddItems and Mandatory drive whether a freshly created
	// evaluation announces itself after the creation grace delay.
	InstructorsCanAddItems bool
	Mandatory              bool

	TemplateID      int64
	AddedTemplateID int64 // zero when absent

	// State caches the last resolved lifecycle state; the dispatcher
	// refreshes it on every wake-up.
	State string `gorm:"size:32;index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Evaluation) TableName() string { return "evaluations" }

// Dates assembles the lifecycle date view of the evaluation.
func (e *Evaluation) Dates() lifecycle.Dates {
	return lifecycle.Dates{
		Start:           e.StartDate,
		Due:             e.DueDate,
		Stop:            e.StopDate,
		View:            e.ViewDate,
		StudentsView:    e.StudentsViewDate,
		InstructorsView: e.InstructorsViewDate,
	}
}

// Template is a reusable set of items.
type Template struct {
	ID      int64  `gorm:"primaryKey;autoIncrement"`
	Title   string `gorm:"size:255"`
	OwnerID string `gorm:"size:190;index"`
	Locked  bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Template) TableName() string { return "eval_templates" }

// TemplateItem places an item inside a template.
type TemplateItem struct {
	ID         int64 `gorm:"primaryKey;autoIncrement"`
	TemplateID int64 `gorm:"index;uniqueIndex:idx_template_item"`
	ItemID     int64 `gorm:"index;uniqueIndex:idx_template_item"`
	Position   int
}

func (TemplateItem) TableName() string { return "eval_template_items" }

// Item is one question; it may answer on a shared scale.
type Item struct {
	ID      int64  `gorm:"primaryKey;autoIncrement"`
	Prompt  string `gorm:"size:1000"`
	ScaleID int64  `gorm:"index"` // zero when the item has no scale
	Locked  bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Item) TableName() string { return "eval_items" }

// Scale is a reusable answer scale.
type Scale struct {
	ID      int64  `gorm:"primaryKey;autoIncrement"`
	Name    string `gorm:"size:255"`
	Options string `gorm:"size:2000"` // comma-separated labels
	Locked  bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Scale) TableName() string { return "eval_scales" }
