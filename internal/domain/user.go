package domain

import (
	"fmt"
	"sort"
)

type UserRole string

const (
	RoleRegular UserRole = "regular"
	RoleAdmin   UserRole = "admin"
)

// Respondent is the sender of an update as reported by the transport.
type Respondent struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// Handle is the display snapshot stored with every response.
func (r Respondent) Handle() string {
	if r.Username != "" {
		return "@" + r.Username
	}
	return fmt.Sprintf("User ID: %d", r.ID)
}

func (r Respondent) FullName() string {
	if r.LastName == "" {
		return r.FirstName
	}
	return r.FirstName + " " + r.LastName
}

// Roster is the persisted snapshot of both user sets.
type Roster struct {
	Admins       []int64 `json:"admins"`
	RegularUsers []int64 `json:"regular_users"`
}

// RosterFromRoles builds a sorted snapshot from a role map.
func RosterFromRoles(roles map[int64]UserRole) Roster {
	r := Roster{Admins: []int64{}, RegularUsers: []int64{}}
	for id, role := range roles {
		switch role {
		case RoleAdmin:
			r.Admins = append(r.Admins, id)
		case RoleRegular:
			r.RegularUsers = append(r.RegularUsers, id)
		}
	}
	sortIDs(r.Admins)
	sortIDs(r.RegularUsers)
	return r
}

// Roles flattens the snapshot. An ID present in both sets resolves to admin.
func (r Roster) Roles() map[int64]UserRole {
	roles := make(map[int64]UserRole, len(r.Admins)+len(r.RegularUsers))
	for _, id := range r.RegularUsers {
		roles[id] = RoleRegular
	}
	for _, id := range r.Admins {
		roles[id] = RoleAdmin
	}
	return roles
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
