package models

// BloomSkills is the ordered cognitive skill taxonomy questions are tagged with.
var BloomSkills = []string{
	"Remembering", "Understanding", "Applying", "Analysing", "Evaluating", "Creating",
}

// Strand is a curriculum topic area taught at one grade.
type Strand struct {
	ID         uint        `json:"id" gorm:"primaryKey"`
	Name       string      `json:"name" gorm:"size:255;not null"`
	Grade      int         `json:"grade" gorm:"not null;index"`
	SubStrands []SubStrand `json:"sub_strands,omitempty" gorm:"foreignKey:StrandID"`
}

func (Strand) TableName() string {
	return "curriculum_strands"
}

type SubStrand struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	StrandID    uint   `json:"strand_id" gorm:"not null;index"`
	Name        string `json:"name" gorm:"size:255;not null"`
	LessonCount int    `json:"lesson_count"`
}

func (SubStrand) TableName() string {
	return "curriculum_sub_strands"
}
