package board

import (
	"kanban/internal/domain"
	"kanban/internal/format"
)

// Directory is a read-only view of the board's users, handed to whatever needs
// to resolve a user id to a name or avatar.
type Directory struct {
	users map[string]domain.User
}

func NewDirectory(users []domain.User) Directory {
	d := Directory{users: make(map[string]domain.User, len(users))}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d Directory) User(id string) (domain.User, bool) {
	u, ok := d.users[id]
	return u, ok
}

// Name returns the user's name, or "Unassigned" when the id is unknown.
func (d Directory) Name(id string) string {
	if u, ok := d.users[id]; ok {
		return u.Name
	}
	return "Unassigned"
}

// Avatar returns the user's avatar, falling back to initials, or "?" when the
// id is unknown.
func (d Directory) Avatar(id string) string {
	u, ok := d.users[id]
	if !ok {
		return "?"
	}
	if u.Avatar != "" {
		return u.Avatar
	}
	return format.Initials(u.Name)
}

// AssigneeName resolves an optional assignee.
func (d Directory) AssigneeName(id *string) string {
	if id == nil {
		return "Unassigned"
	}
	return d.Name(*id)
}
