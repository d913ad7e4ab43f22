package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"libris/internal/auth"
	"libris/internal/models"
	"libris/internal/permission"
	"libris/internal/repository"
	"libris/internal/storage"
	"libris/internal/validation"

	"gorm.io/gorm"
)

// MeRef addresses the requesting user in user routes.
const MeRef = "me"

// UserService manages accounts on behalf of an actor.
type UserService struct {
	users  repository.UserRepository
	tokens repository.TokenRepository
	media  *storage.Media
	policy validation.PasswordPolicy
}

func NewUserService(db *gorm.DB, media *storage.Media, policy validation.PasswordPolicy) *UserService {
	return &UserService{
		users:  repository.NewUserRepository(db),
		tokens: repository.NewTokenRepository(db),
		media:  media,
		policy: policy,
	}
}

// UserInput is a profile change. Nil fields are left untouched.
type UserInput struct {
	Email       *string
	Username    *string
	FirstName   *string
	LastName    *string
	BirthDate   **time.Time
	PhoneNumber *string
	Address     *string
	Bio         *string
	Avatar      *storage.Upload
}

func (s *UserService) List(ctx context.Context, actor models.Actor, page Page) ([]models.User, int64, error) {
	if err := authorize(permission.CanUser(permission.List, actor, nil), actor); err != nil {
		return nil, 0, err
	}
	return s.users.List(ctx, page)
}

// Resolve maps a route reference to a user. "me" is the actor itself; any
// other id belonging to someone else is reported as missing to non-staff.
func (s *UserService) Resolve(ctx context.Context, actor models.Actor, ref string) (*models.User, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if ref == MeRef {
		return actor.User, nil
	}

	id, err := strconv.ParseUint(ref, 10, 64)
	if err != nil || id == 0 {
		return nil, models.NewNotFoundError("User", ref)
	}
	if !actor.IsStaff() && uint(id) != actor.ID() {
		return nil, models.NewNotFoundError("User", id)
	}
	if uint(id) == actor.ID() {
		return actor.User, nil
	}
	return s.users.GetByID(ctx, uint(id))
}

func (s *UserService) Get(ctx context.Context, actor models.Actor, ref string) (*models.User, error) {
	user, err := s.Resolve(ctx, actor, ref)
	if err != nil {
		return nil, err
	}
	if err := authorize(permission.CanUser(permission.Retrieve, actor, user), actor); err != nil {
		return nil, err
	}
	return user, nil
}

// Update applies in to the referenced user. With partial unset, email and
// username must both be supplied.
func (s *UserService) Update(ctx context.Context, actor models.Actor, ref string, in UserInput, partial bool) (*models.User, error) {
	user, err := s.Resolve(ctx, actor, ref)
	if err != nil {
		return nil, err
	}
	action := permission.Update
	if partial {
		action = permission.PartialUpdate
	}
	if err := authorize(permission.CanUser(action, actor, user), actor); err != nil {
		return nil, err
	}

	updated := *user
	fe := models.FieldErrors{}

	if in.Email != nil {
		email := validation.NormalizeEmail(*in.Email)
		if err := validation.ValidateEmail(email); err != nil {
			fe.Add("email", err.Error())
		} else if taken, err := s.users.EmailTaken(ctx, email, user.ID); err != nil {
			return nil, err
		} else if taken {
			fe.Add("email", models.NewDuplicateError("User", "email").Fields["email"][0])
		}
		updated.Email = email
	} else if !partial {
		fe.Add("email", msgRequired)
	}

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if err := validation.ValidateUsername(username); err != nil {
			fe.Add("username", err.Error())
		} else if taken, err := s.users.UsernameTaken(ctx, username, user.ID); err != nil {
			return nil, err
		} else if taken {
			fe.Add("username", models.NewDuplicateError("User", "username").Fields["username"][0])
		}
		updated.Username = username
	} else if !partial {
		fe.Add("username", msgRequired)
	}

	setText := func(field string, src *string, dst *string, max int) {
		if src == nil {
			return
		}
		if err := validation.ValidateMaxLength(*src, max); err != nil {
			fe.Add(field, err.Error())
			return
		}
		*dst = strings.TrimSpace(*src)
	}
	setText("first_name", in.FirstName, &updated.FirstName, 150)
	setText("last_name", in.LastName, &updated.LastName, 150)
	setText("phone_number", in.PhoneNumber, &updated.PhoneNumber, 20)
	setText("address", in.Address, &updated.Address, 0)
	setText("bio", in.Bio, &updated.Bio, 0)

	if in.BirthDate != nil {
		updated.BirthDate = *in.BirthDate
	}

	if err := fe.Err(); err != nil {
		return nil, err
	}
	if avatar := storeImage(s.media, storage.UserAvatarsDir, "avatar", in.Avatar, fe); avatar != "" {
		updated.Avatar = avatar
	}
	if err := fe.Err(); err != nil {
		return nil, err
	}

	if err := s.users.Update(ctx, &updated); err != nil {
		if updated.Avatar != user.Avatar {
			replaceImage(s.media, updated.Avatar, "")
		}
		return nil, err
	}
	replaceImage(s.media, user.Avatar, updated.Avatar)
	return &updated, nil
}

// Create provisions an account on behalf of a staff actor.
func (s *UserService) Create(ctx context.Context, actor models.Actor, in AccountInput) (*models.User, error) {
	if err := authorize(permission.CanUser(permission.Create, actor, nil), actor); err != nil {
		return nil, err
	}
	if !actor.User.IsSuperuser {
		in.IsSuperuser = false
	}
	return s.Provision(ctx, in)
}

// Provision validates and creates an account without an actor check. It
// backs the management commands.
func (s *UserService) Provision(ctx context.Context, in AccountInput) (*models.User, error) {
	in.normalize()
	if err := validateAccount(ctx, s.users, s.policy, in); err != nil {
		return nil, err
	}
	user, err := newUserRecord(in)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// EnsureSuperuser creates a superuser, or promotes the account that already
// owns the email and resets its password.
func (s *UserService) EnsureSuperuser(ctx context.Context, in AccountInput) (user *models.User, created bool, err error) {
	in.normalize()
	in.IsStaff, in.IsSuperuser = true, true

	existing, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil && !isNotFound(err) {
		return nil, false, err
	}
	if existing == nil {
		user, err = s.Provision(ctx, in)
		return user, err == nil, err
	}

	if in.Password == "" {
		return nil, false, models.NewFieldError("password", msgRequired)
	}
	if problems := s.policy.Check(in.Password, in.attributes()); len(problems) > 0 {
		return nil, false, models.NewFieldErrors(map[string][]string{"password": problems})
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, false, models.NewInternalError(err)
	}
	existing.Password = hash
	existing.IsActive, existing.IsStaff, existing.IsSuperuser = true, true, true
	if err := s.users.Update(ctx, existing); err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Delete removes a user; staff only. Staff cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, actor models.Actor, ref string) error {
	if err := authorize(permission.CanUser(permission.Destroy, actor, nil), actor); err != nil {
		return err
	}
	user, err := s.Resolve(ctx, actor, ref)
	if err != nil {
		return err
	}
	if user.ID == actor.ID() {
		return models.NewValidationError("You cannot delete your own account.")
	}
	if err := s.users.Delete(ctx, user.ID); err != nil {
		return err
	}
	replaceImage(s.media, user.Avatar, "")
	return nil
}

// SetRole toggles staff access on a user; staff only.
func (s *UserService) SetRole(ctx context.Context, actor models.Actor, id uint, staff bool) (*models.User, error) {
	return s.adminUpdate(ctx, actor, id, func(u *models.User) error {
		if !staff && u.ID == actor.ID() {
			return models.NewValidationError("You cannot remove your own staff access.")
		}
		u.IsStaff = staff
		if !staff {
			u.IsSuperuser = false
		}
		return nil
	})
}

// SetActive enables or disables login for a user; staff only. Disabling
// revokes the user's API token.
func (s *UserService) SetActive(ctx context.Context, actor models.Actor, id uint, active bool) (*models.User, error) {
	user, err := s.adminUpdate(ctx, actor, id, func(u *models.User) error {
		if !active && u.ID == actor.ID() {
			return models.NewValidationError("You cannot deactivate your own account.")
		}
		u.IsActive = active
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !active {
		if _, err := s.tokens.DeleteByUserID(ctx, user.ID); err != nil {
			return nil, err
		}
	}
	return user, nil
}

func (s *UserService) adminUpdate(ctx context.Context, actor models.Actor, id uint, mutate func(*models.User) error) (*models.User, error) {
	if err := authorize(actor.IsStaff(), actor); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// Only superusers may change another superuser's role or status.
	if user.IsSuperuser && !actor.User.IsSuperuser {
		return nil, models.NewForbiddenError(msgForbidden)
	}
	if err := mutate(user); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
