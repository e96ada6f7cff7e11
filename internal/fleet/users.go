package fleet

import (
	"fmt"
	"strings"
	"time"

	"loom-maintenance-backend/internal/model"
)

// AddUser appends an account. Usernames are unique regardless of case.
func AddUser(d *model.Document, in model.NewUser, now time.Time) (model.User, error) {
	id, err := newID(d, in.ID)
	if err != nil {
		return model.User{}, err
	}
	u := model.User{
		ID:       id,
		Username: strings.TrimSpace(in.Username),
		Name:     strings.TrimSpace(in.Name),
		Email:    strings.TrimSpace(in.Email),
		Role:     in.Role,
		Created:  now,
	}
	if u.Role == "" {
		u.Role = model.RoleViewer
	}
	if err := validateUser(d, &u); err != nil {
		return model.User{}, err
	}
	if in.Password == "" {
		return model.User{}, invalid("password is required")
	}
	if err := u.SetPassword(in.Password); err != nil {
		return model.User{}, fmt.Errorf("failed to hash password: %w", err)
	}
	d.Users = append(d.Users, u)
	return u, nil
}

// UpdateUser applies u. A new password is hashed before it is stored.
func UpdateUser(d *model.Document, id string, upd model.UserUpdate) (model.User, error) {
	cur := d.User(id)
	if cur == nil {
		return model.User{}, notFound("user", id)
	}
	u := *cur
	if err := set(&u.Username, upd.Username, "username"); err != nil {
		return model.User{}, err
	}
	setNullable(&u.Name, upd.Name)
	setNullable(&u.Email, upd.Email)
	if err := set(&u.Role, upd.Role, "role"); err != nil {
		return model.User{}, err
	}
	u.Username = strings.TrimSpace(u.Username)
	if err := validateUser(d, &u); err != nil {
		return model.User{}, err
	}
	if cur.Role == model.RoleAdmin && u.Role != model.RoleAdmin && adminCount(d) == 1 {
		return model.User{}, fmt.Errorf("user %q is the last administrator: %w", cur.Username, ErrInUse)
	}
	if pw, ok := upd.Password.Get(); ok {
		if pw == "" {
			return model.User{}, invalid("password must not be empty")
		}
		if err := u.SetPassword(pw); err != nil {
			return model.User{}, fmt.Errorf("failed to hash password: %w", err)
		}
	} else if upd.Password.Null {
		return model.User{}, invalid("password cannot be null")
	}
	*cur = u
	return u, nil
}

// DeleteUser removes an account. The last administrator cannot be removed.
func DeleteUser(d *model.Document, id string) error {
	for i := range d.Users {
		if d.Users[i].ID != id {
			continue
		}
		if d.Users[i].Role == model.RoleAdmin && adminCount(d) == 1 {
			return fmt.Errorf("user %q is the last administrator: %w", d.Users[i].Username, ErrInUse)
		}
		d.Users = removeAt(d.Users, i)
		return nil
	}
	return notFound("user", id)
}

// Authenticate checks a username and password against the stored hashes.
func Authenticate(d *model.Document, username, password string) (model.User, error) {
	username = strings.TrimSpace(username)
	for _, u := range d.Users {
		if strings.EqualFold(u.Username, username) {
			if u.CheckPassword(password) {
				return u, nil
			}
			break
		}
	}
	return model.User{}, ErrBadCredentials
}

func adminCount(d *model.Document) int {
	n := 0
	for _, u := range d.Users {
		if u.Role == model.RoleAdmin {
			n++
		}
	}
	return n
}

func validateUser(d *model.Document, u *model.User) error {
	if u.Username == "" {
		return invalid("username is required")
	}
	if !u.Role.Valid() {
		return invalid("unknown role %q", u.Role)
	}
	for _, other := range d.Users {
		if other.ID != u.ID && strings.EqualFold(other.Username, u.Username) {
			return fmt.Errorf("username %q: %w", u.Username, ErrDuplicate)
		}
	}
	return nil
}
