package pin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"meetpin/entity"
	"meetpin/internal/identity"
	"meetpin/internal/passcode"
	"meetpin/lib/apperr"
	"meetpin/lib/sl"
)

// SdcRequireDeactivateOn is the dynamic config key mandating a deactivation
// date on conference pin creation.
const SdcRequireDeactivateOn = "RequireDeactivateOn"

const deactivateOnThresholdDays = 365

// ErrConflict signals a conditional store write that failed its condition:
// the record exists but was concurrently modified or is otherwise not in
// the expected state. Distinct from absence.
var ErrConflict = errors.New("conditional write conflict")

// Store is the pin persistence contract. Get-style methods return nil when
// absent; conditional writes return ErrConflict on condition failure.
type Store interface {
	GetPin(ctx context.Context, code string) (*entity.Pin, error)
	InsertPin(ctx context.Context, pin *entity.Pin) error
	UpdatePin(ctx context.Context, pin *entity.Pin) error
	PersonalPinByOwner(ctx context.Context, profileId string) (*entity.Pin, error)
	ClaimPin(ctx context.Context, code, ownerProfileId string) (*entity.Pin, error)
	ConditionalExpirePin(ctx context.Context, code, ownerProfileId string) error
	ExpirePin(ctx context.Context, code string) error
}

// AliasStore resolves and rebinds secondary lookup codes.
type AliasStore interface {
	AliasCode(ctx context.Context, alias string) (string, error)
	UpdateAlias(ctx context.Context, alias, newCode string) error
}

// Directory is the identity/profile directory read (and register) path.
type Directory interface {
	Profile(ctx context.Context, profileId string) (*entity.Profile, error)
	ProfileByEmail(ctx context.Context, email string) (*entity.Profile, error)
	GetOrRegisterProfileByEmail(ctx context.Context, email string, autoCreate bool) (*entity.Profile, error)
}

// ConfigProvider is the dynamic configuration read path.
type ConfigProvider interface {
	GetBool(ctx context.Context, key string, def bool) bool
}

// CodeGenerator allocates unique code suffixes under bounded retries.
type CodeGenerator interface {
	Generate(ctx context.Context, baseCode, scopeKey string, suffixLen int,
		collides passcode.CollisionFunc) (string, error)
}

// Manager owns the pin lifecycle: create, reclaim, recreate, expire, and
// the alias-aware read path. It holds no state across calls; uniqueness
// under concurrency is carried by the store's conditional writes.
type Manager struct {
	pins     Store
	aliases  AliasStore
	identity Directory
	conf     ConfigProvider
	gen      CodeGenerator
	log      *slog.Logger
}

func NewManager(pins Store, aliases AliasStore, directory Directory, conf ConfigProvider, gen CodeGenerator, log *slog.Logger) *Manager {
	if pins == nil {
		panic("pin store is nil")
	}
	return &Manager{
		pins:     pins,
		aliases:  aliases,
		identity: directory,
		conf:     conf,
		gen:      gen,
		log:      log.With(sl.Module("pin.manager")),
	}
}

// resolveToCode follows alias indirection. Alias resolution always precedes
// the primary lookup.
func (m *Manager) resolveToCode(ctx context.Context, code string) (string, error) {
	resolved, err := m.aliases.AliasCode(ctx, code)
	if err != nil {
		return "", fmt.Errorf("resolve alias: %w", err)
	}
	if resolved != "" {
		return resolved, nil
	}
	return code, nil
}

// Find resolves code (alias-aware) to a pin, failing NotFound when absent.
func (m *Manager) Find(ctx context.Context, code string) (*entity.Pin, error) {
	pin, err := m.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	if pin == nil {
		return nil, apperr.NotFound(apperr.CodePinNotFound, "unable to locate pin")
	}
	return pin, nil
}

// Lookup is the caller-selectable variant of Find returning nil, nil when
// the pin is absent.
func (m *Manager) Lookup(ctx context.Context, code string) (*entity.Pin, error) {
	resolved, err := m.resolveToCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return m.pins.GetPin(ctx, resolved)
}

func (m *Manager) Create(ctx context.Context, req *entity.CreatePinRequest) (*entity.CreatePinResponse, error) {
	typ, ok := entity.PinTypeFromString(req.PinType)
	if !ok {
		return nil, apperr.BadRequest("invalid pin type " + req.PinType)
	}
	policy := policyFromRequest(typ, req.PinPolicy)
	switch typ {
	case entity.PinTypeGeneric:
		return nil, apperr.BadRequest("generic pin create currently unsupported")
	case entity.PinTypePersonal:
		return m.createPersonal(ctx, req)
	case entity.PinTypeConference:
		return m.createConference(ctx, policy, req)
	case entity.PinTypeAttendee:
		return m.createAttendee(ctx, policy, req)
	case entity.PinTypeSdk:
		return nil, apperr.BadRequest("unhandled pin type " + req.PinType)
	}
	return nil, apperr.BadRequest("unhandled pin type " + req.PinType)
}

func (m *Manager) ensureOneEntity(req *entity.CreatePinRequest) error {
	if len(req.Entities) == 0 {
		return apperr.BadRequest(fmt.Sprintf("%s pin create: you must provide one entity", req.PinType))
	}
	if len(req.Entities) != 1 {
		return apperr.BadRequest(fmt.Sprintf("%s pin create supports one entity at a time and you provided %d",
			req.PinType, len(req.Entities)))
	}
	return nil
}

func (m *Manager) createPersonal(ctx context.Context, req *entity.CreatePinRequest) (*entity.CreatePinResponse, error) {
	if err := m.ensureOneEntity(req); err != nil {
		return nil, err
	}
	e := req.Entities[0]
	profile, err := m.resolveOrCreateProfile(ctx, e)
	if err != nil {
		return nil, err
	}
	pin, err := m.findOrCreatePersonalPin(ctx, profile)
	if err != nil {
		return nil, err
	}
	return &entity.CreatePinResponse{
		AllocatedPins: []entity.PinResult{{EntityId: profile.ProfileId, Email: e.Email, Pin: pin.Code}},
	}, nil
}

// findOrCreatePersonalPin is idempotent: the same profile always maps to
// the same personal pin code.
func (m *Manager) findOrCreatePersonalPin(ctx context.Context, profile *entity.Profile) (*entity.Pin, error) {
	existing, err := m.pins.PersonalPinByOwner(ctx, profile.ProfileId)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	code, err := m.generateCode(ctx, defaultPolicy(entity.PinTypePersonal))
	if err != nil {
		return nil, err
	}
	pin := &entity.Pin{
		Code:          code,
		Type:          entity.PinTypePersonal,
		OwnerEntityId: profile.ProfileId,
		CreatedAt:     time.Now().UTC(),
	}
	if err = m.pins.InsertPin(ctx, pin); err != nil {
		return nil, fmt.Errorf("insert personal pin: %w", err)
	}
	return pin, nil
}

func (m *Manager) createConference(ctx context.Context, policy entity.PinPolicy, req *entity.CreatePinRequest) (*entity.CreatePinResponse, error) {
	if err := m.validateConferenceCreate(ctx, req, policy); err != nil {
		return nil, err
	}
	e := req.Entities[0]
	profile, err := m.resolveOrCreateProfile(ctx, e)
	if err != nil {
		return nil, err
	}
	code, err := m.generateCode(ctx, policy)
	if err != nil {
		return nil, err
	}
	pin := &entity.Pin{
		Code:          code,
		Type:          entity.PinTypeConference,
		OwnerEntityId: profile.ProfileId,
		DeactivateOn:  policy.DeactivateOn,
		CreatedAt:     time.Now().UTC(),
	}
	if err = m.pins.InsertPin(ctx, pin); err != nil {
		return nil, fmt.Errorf("insert conference pin: %w", err)
	}
	if req.ModeratorCode != "" {
		if err = m.attachModeratorCode(ctx, pin, req.ModeratorCode); err != nil {
			return nil, err
		}
	}
	return &entity.CreatePinResponse{
		AllocatedPins: []entity.PinResult{{EntityId: profile.ProfileId, Email: e.Email, Pin: pin.Code}},
	}, nil
}

// validateConferenceCreate enforces the deactivation policy. Reserved pins
// are managed externally and exempt from the deactivation requirement.
func (m *Manager) validateConferenceCreate(ctx context.Context, req *entity.CreatePinRequest, policy entity.PinPolicy) error {
	if policy.ReservedBy == "" {
		if m.conf.GetBool(ctx, SdcRequireDeactivateOn, false) && policy.DeactivateOn == nil {
			return apperr.BadRequest("deactivate_on absent for conference pin create")
		}
		if policy.DeactivateOn != nil {
			threshold := time.Now().Add(deactivateOnThresholdDays * 24 * time.Hour)
			if policy.DeactivateOn.After(threshold) {
				return apperr.BadRequest("invalid deactivate_on " + policy.DeactivateOn.Format(time.RFC3339))
			}
		}
	}
	return m.ensureOneEntity(req)
}

// attachModeratorCode stores a bcrypt hash of the moderator code on the
// pin; the clear code is never persisted.
func (m *Manager) attachModeratorCode(ctx context.Context, pin *entity.Pin, code string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash moderator code: %w", err)
	}
	pin.ModeratorCodeHash = string(hash)
	if err = m.pins.UpdatePin(ctx, pin); err != nil {
		return fmt.Errorf("update moderator info: %w", err)
	}
	return nil
}

func (m *Manager) createAttendee(ctx context.Context, policy entity.PinPolicy, req *entity.CreatePinRequest) (*entity.CreatePinResponse, error) {
	if len(req.Entities) == 0 {
		return nil, apperr.BadRequest("attendee pin create requires a list of pin entities")
	}
	if policy.BasePin == "" {
		return nil, apperr.BadRequest("attendee pin create requires a base pin")
	}
	baseCode, err := m.resolveToCode(ctx, policy.BasePin)
	if err != nil {
		return nil, err
	}
	base, err := m.pins.GetPin(ctx, baseCode)
	if err != nil {
		return nil, err
	}
	if base == nil {
		return nil, apperr.BadRequest("attendee pin create provided non-existent base pin")
	}

	policy.BasePin = base.Code
	policy.MinLength = attendeeSuffixLength
	policy.MaxLength = attendeeSuffixLength
	policy.SuffixLength = attendeeSuffixLength

	resp := &entity.CreatePinResponse{}
	for _, e := range req.Entities {
		profile, err := m.resolveOrCreateProfile(ctx, e)
		if err != nil {
			resp.Failures = append(resp.Failures, entity.PinResultFailure{
				EntityId: e.EntityId, Email: e.Email, Reason: err.Error(),
			})
			continue
		}
		code, err := m.generateCode(ctx, policy)
		if err != nil {
			return nil, err
		}
		pin := &entity.Pin{
			Code:          code,
			Type:          entity.PinTypeAttendee,
			OwnerEntityId: profile.ProfileId,
			CreatedAt:     time.Now().UTC(),
		}
		if err = m.pins.InsertPin(ctx, pin); err != nil {
			return nil, fmt.Errorf("insert attendee pin: %w", err)
		}
		resp.AllocatedPins = append(resp.AllocatedPins, entity.PinResult{
			EntityId: profile.ProfileId, Email: e.Email, Pin: code,
		})
	}
	return resp, nil
}

// generateCode allocates a fresh code per policy, collision-checked against
// the pin store. The store's unique index is the final arbiter: two
// concurrent calls can both pass this check, and the loser's insert is
// rejected there.
func (m *Manager) generateCode(ctx context.Context, policy entity.PinPolicy) (string, error) {
	return m.gen.Generate(ctx, policy.BasePin, "pins", policy.SuffixLength, m.pinTaken)
}

func (m *Manager) pinTaken(ctx context.Context, code, _ string) (bool, error) {
	existing, err := m.pins.GetPin(ctx, code)
	if err != nil {
		return false, err
	}
	return existing != nil, nil
}

func (m *Manager) Reclaim(ctx context.Context, req *entity.ReclaimPinRequest) (*entity.Pin, error) {
	if req.Pin == "" || (req.PinOwnerProfileId == "" && req.PinOwnerEmail == "") {
		m.log.Error("reclaim pin request doesn't satisfy requirements")
		return nil, apperr.BadRequest("reclaim pin request doesn't satisfy requirements")
	}
	existing, err := m.pins.GetPin(ctx, req.Pin)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, apperr.NotFound(apperr.CodePinNotFound, "unable to locate pin")
	}
	profile, err := m.resolveProfile(ctx, req.PinOwnerProfileId, req.PinOwnerEmail)
	if err != nil {
		return nil, err
	}
	claimed, err := m.pins.ClaimPin(ctx, req.Pin, profile.ProfileId)
	if errors.Is(err, ErrConflict) {
		return nil, apperr.Unprocessable(apperr.CodePinNotReclaimed, "pin not reclaimed")
	}
	if err != nil {
		return nil, fmt.Errorf("claim pin: %w", err)
	}
	return claimed, nil
}

func (m *Manager) Recreate(ctx context.Context, req *entity.RecreatePinRequest) (*entity.CreatePinResponse, error) {
	if req.Pin == "" || (req.PinOwnerProfileId == "" && req.PinOwnerEmail == "") {
		return nil, apperr.BadRequest("recreate pin request doesn't satisfy requirements")
	}
	profile, err := m.resolveProfile(ctx, req.PinOwnerProfileId, req.PinOwnerEmail)
	if err != nil {
		return nil, err
	}
	current, err := m.pins.GetPin(ctx, req.Pin)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperr.NotFound(apperr.CodePinNotFound, "unable to locate pin")
	}

	// Expiry commits before alias rebinding; a missing alias record later is
	// non-fatal.
	err = m.pins.ConditionalExpirePin(ctx, req.Pin, profile.ProfileId)
	if errors.Is(err, ErrConflict) {
		return nil, apperr.Unprocessable(apperr.CodePinNotRecreated, "pin not recreated")
	}
	if err != nil {
		return nil, fmt.Errorf("expire pin: %w", err)
	}

	newPin, err := m.findOrCreatePersonalPin(ctx, profile)
	if err != nil {
		return nil, err
	}

	if current.Alias != "" {
		if err = m.rebindAlias(ctx, current.Alias, newPin); err != nil {
			return nil, err
		}
	}

	return &entity.CreatePinResponse{
		AllocatedPins: []entity.PinResult{{EntityId: profile.ProfileId, Pin: newPin.Code}},
	}, nil
}

func (m *Manager) rebindAlias(ctx context.Context, alias string, newPin *entity.Pin) error {
	code, err := m.aliases.AliasCode(ctx, alias)
	if err != nil {
		return fmt.Errorf("load alias: %w", err)
	}
	if code == "" {
		// Presumed rebound or removed by out-of-scope logic.
		m.log.Error("unexpected: pin alias doesn't exist", slog.String("alias", alias))
		return nil
	}
	m.log.Info("pin alias exists, updating", slog.String("alias", alias))
	if err = m.aliases.UpdateAlias(ctx, alias, newPin.Code); err != nil {
		return fmt.Errorf("update alias: %w", err)
	}
	newPin.Alias = alias
	if err = m.pins.UpdatePin(ctx, newPin); err != nil {
		return fmt.Errorf("update pin alias: %w", err)
	}
	return nil
}

// Expire marks a pin expired with no precondition check.
func (m *Manager) Expire(ctx context.Context, code string) error {
	return m.pins.ExpirePin(ctx, code)
}

func (m *Manager) resolveProfile(ctx context.Context, profileId, email string) (*entity.Profile, error) {
	if m.identity == nil {
		return nil, fmt.Errorf("identity service not connected")
	}
	var profile *entity.Profile
	var err error
	if profileId != "" {
		profile, err = m.identity.Profile(ctx, profileId)
	} else {
		profile, err = m.identity.ProfileByEmail(ctx, email)
	}
	if errors.Is(err, identity.ErrProfileNotFound) {
		return nil, apperr.NotFound(apperr.CodeProfileNotFound, "profile not found")
	}
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (m *Manager) resolveOrCreateProfile(ctx context.Context, e entity.PinEntity) (*entity.Profile, error) {
	if e.EntityId == "" && e.Email == "" {
		return nil, apperr.BadRequest("not enough pin entity information to resolve profile id")
	}
	if m.identity == nil {
		return nil, fmt.Errorf("identity service not connected")
	}
	if e.EntityId != "" {
		profile, err := m.identity.Profile(ctx, e.EntityId)
		if errors.Is(err, identity.ErrProfileNotFound) {
			return nil, apperr.NotFound(apperr.CodeProfileNotFound, "profile not found")
		}
		return profile, err
	}
	profile, err := m.identity.GetOrRegisterProfileByEmail(ctx, e.Email, true)
	if errors.Is(err, identity.ErrProfileNotFound) {
		return nil, apperr.NotFound(apperr.CodeProfileNotFound, "profile not found")
	}
	return profile, err
}
