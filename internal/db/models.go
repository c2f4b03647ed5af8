package db

import (
	"time"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// PairingStatus is the lifecycle axis of a profile, independent of approval.
type PairingStatus string

const (
	PairingInactive       PairingStatus = "inactive"
	PairingSearching      PairingStatus = "searching"
	PairingMatchedPending PairingStatus = "matched_pending"
	PairingPaired         PairingStatus = "paired"
	PairingUnpairPending  PairingStatus = "unpair_pending"
)

type MatchStatus string

const (
	MatchPending   MatchStatus = "pending"
	MatchConfirmed MatchStatus = "confirmed"
	MatchRejected  MatchStatus = "rejected"
)

type UnpairStatus string

const (
	UnpairPending       UnpairStatus = "pending"
	UnpairApproved      UnpairStatus = "approved"
	UnpairDenied        UnpairStatus = "denied"
	UnpairCancelled     UnpairStatus = "cancelled"
	UnpairForceResolved UnpairStatus = "force_resolved"
)

const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderAny    = "any"
)

// Profile is a registered user.
//
// Indexes:
//   - idx_profile_pool(approval, pairing, banned, gender, age)
//     Serves the candidate selector filter.
//   - idx_profile_status_updated(pairing, status_updated_at)
//     Serves the sweeper's stale matched_pending scan.
type Profile struct {
	UserID          int64          `gorm:"primaryKey;autoIncrement:false"`
	Username        string         `gorm:"size:64"`
	FirstName       string         `gorm:"size:64;not null"`
	LastName        string         `gorm:"size:64;not null"`
	Age             int            `gorm:"not null;index:idx_profile_pool,priority:5"`
	Gender          string         `gorm:"size:16;not null;index:idx_profile_pool,priority:4"`
	Course          string         `gorm:"size:64"`
	Interests       string         `gorm:"size:255"`
	AboutMe         string         `gorm:"size:512"`
	MediaFileID     *string        `gorm:"size:255"`
	MediaType       *string        `gorm:"size:16"`
	Approval        ApprovalStatus `gorm:"size:16;not null;default:pending;index:idx_profile_pool,priority:1"`
	Pairing         PairingStatus  `gorm:"size:24;not null;default:inactive;index:idx_profile_pool,priority:2;index:idx_profile_status_updated,priority:1"`
	PartnerID       *int64
	Banned          bool    `gorm:"not null;default:false;index:idx_profile_pool,priority:3"`
	BanReason       *string `gorm:"size:255"`
	PreferredGender string  `gorm:"size:16;not null;default:any"`
	PreferredAgeMin int     `gorm:"not null;default:16"`
	PreferredAgeMax int     `gorm:"not null;default:100"`
	SearchExpanded  bool    `gorm:"not null;default:false"`
	CreatedAt       time.Time
	StatusUpdatedAt time.Time `gorm:"index:idx_profile_status_updated,priority:2"`
}

// Like is a directed like edge. (FromUserID, ToUserID) is unique so a
// duplicate insert is a no-op and two concurrent inserts cannot both win.
type Like struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	FromUserID int64  `gorm:"not null;uniqueIndex:idx_like_pair,priority:1"`
	ToUserID   int64  `gorm:"not null;uniqueIndex:idx_like_pair,priority:2;index"`
	CreatedAt  time.Time
}

// Skip is a directed skip edge, also written synthetically when a match is
// rejected or expires.
type Skip struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	FromUserID int64  `gorm:"not null;uniqueIndex:idx_skip_pair,priority:1"`
	ToUserID   int64  `gorm:"not null;uniqueIndex:idx_skip_pair,priority:2;index"`
	CreatedAt  time.Time
}

// Match is a mutual like awaiting confirmation from both sides.
// User1ID is always the lower id; the pair is unique.
type Match struct {
	ID             uint64      `gorm:"primaryKey;autoIncrement"`
	User1ID        int64       `gorm:"column:user1_id;not null;uniqueIndex:idx_match_pair,priority:1"`
	User2ID        int64       `gorm:"column:user2_id;not null;uniqueIndex:idx_match_pair,priority:2;index"`
	User1Confirmed bool        `gorm:"column:user1_confirmed;not null;default:false"`
	User2Confirmed bool        `gorm:"column:user2_confirmed;not null;default:false"`
	Status         MatchStatus `gorm:"size:16;not null;default:pending;index"`
	CreatedAt      time.Time
	ConfirmedAt    *time.Time
}

// Other returns the counterpart of userID in the match.
func (m *Match) Other(userID int64) int64 {
	if m.User1ID == userID {
		return m.User2ID
	}
	return m.User1ID
}

// ConfirmedBy reports whether userID has confirmed the match.
func (m *Match) ConfirmedBy(userID int64) bool {
	if m.User1ID == userID {
		return m.User1Confirmed
	}
	return m.User2Confirmed
}

// PairHistory is an append-only record of a confirmed pairing. An entry with
// UnpairedAt == nil is the open entry of a current pair.
type PairHistory struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	User1ID    int64  `gorm:"column:user1_id;not null;index:idx_history_pair,priority:1"`
	User2ID    int64  `gorm:"column:user2_id;not null;index:idx_history_pair,priority:2;index"`
	PairedAt   time.Time
	UnpairedAt *time.Time
}

func (PairHistory) TableName() string { return "pair_history" }

// UnpairRequest is one user's petition to dissolve a pair.
type UnpairRequest struct {
	ID           uint64       `gorm:"primaryKey;autoIncrement"`
	RequesterID  int64        `gorm:"not null;index"`
	PartnerID    int64        `gorm:"not null;index"`
	Reason       string       `gorm:"size:512;not null"`
	Status       UnpairStatus `gorm:"size:16;not null;default:pending;index:idx_unpair_status_created,priority:1"`
	AdminComment *string      `gorm:"size:512"`
	CreatedAt    time.Time    `gorm:"index:idx_unpair_status_created,priority:2"`
	ResolvedAt   *time.Time
}

// OrderedPair returns (min, max) of two user ids, the canonical order used
// for Match and PairHistory rows.
func OrderedPair(a, b int64) (int64, int64) {
	if a < b {
		return a, b
	}
	return b, a
}

// Models lists every table for migrations.
func Models() []any {
	return []any{&Profile{}, &Like{}, &Skip{}, &Match{}, &PairHistory{}, &UnpairRequest{}}
}
