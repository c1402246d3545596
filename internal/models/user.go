package models

// ExcludedRank marks a participant who never takes a turn.
const ExcludedRank = -1

// User is a participant of exactly one assessment instance.
type User struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	InstanceID   uint   `gorm:"not null;index;uniqueIndex:idx_user_code;uniqueIndex:idx_user_name;uniqueIndex:idx_user_email" json:"assessment_instance_id"`
	Name         string `gorm:"size:255;not null;uniqueIndex:idx_user_name" json:"name"`
	Email        string `gorm:"size:255;not null;uniqueIndex:idx_user_email" json:"email"`
	TurnOrder    int    `gorm:"not null" json:"turn_order"`
	Group        string `gorm:"column:group_name;size:100;not null;default:''" json:"group"`
	VoteEveryone bool   `gorm:"not null;default:false" json:"vote_everyone"`
	AccessCode   string `gorm:"size:32;not null;uniqueIndex:idx_user_code" json:"access_code"`
}

func (u *User) Excluded() bool {
	return u.TurnOrder < 0
}
