package pin

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"meetpin/entity"
	"meetpin/internal/identity"
	"meetpin/internal/passcode"
	"meetpin/lib/apperr"
)

type fakePinStore struct {
	pins map[string]*entity.Pin
}

func newFakePinStore(pins ...*entity.Pin) *fakePinStore {
	s := &fakePinStore{pins: make(map[string]*entity.Pin)}
	for _, p := range pins {
		s.pins[p.Code] = p
	}
	return s
}

func (s *fakePinStore) GetPin(_ context.Context, code string) (*entity.Pin, error) {
	return s.pins[code], nil
}

func (s *fakePinStore) InsertPin(_ context.Context, pin *entity.Pin) error {
	s.pins[pin.Code] = pin
	return nil
}

func (s *fakePinStore) UpdatePin(_ context.Context, pin *entity.Pin) error {
	s.pins[pin.Code] = pin
	return nil
}

func (s *fakePinStore) PersonalPinByOwner(_ context.Context, profileId string) (*entity.Pin, error) {
	for _, p := range s.pins {
		if p.Type == entity.PinTypePersonal && p.OwnerEntityId == profileId && !p.Expired {
			return p, nil
		}
	}
	return nil, nil
}

func (s *fakePinStore) ClaimPin(_ context.Context, code, ownerProfileId string) (*entity.Pin, error) {
	p := s.pins[code]
	if p == nil || p.Expired || p.OwnerEntityId != "" {
		return nil, ErrConflict
	}
	p.OwnerEntityId = ownerProfileId
	return p, nil
}

func (s *fakePinStore) ConditionalExpirePin(_ context.Context, code, ownerProfileId string) error {
	p := s.pins[code]
	if p == nil || p.Expired || p.OwnerEntityId != ownerProfileId {
		return ErrConflict
	}
	p.Expired = true
	return nil
}

func (s *fakePinStore) ExpirePin(_ context.Context, code string) error {
	if p := s.pins[code]; p != nil {
		p.Expired = true
	}
	return nil
}

type fakeAliasStore struct {
	m map[string]string
}

func (s *fakeAliasStore) AliasCode(_ context.Context, alias string) (string, error) {
	return s.m[alias], nil
}

func (s *fakeAliasStore) UpdateAlias(_ context.Context, alias, newCode string) error {
	s.m[alias] = newCode
	return nil
}

type fakeDirectory struct {
	byId    map[string]*entity.Profile
	byEmail map[string]*entity.Profile
}

func newFakeDirectory(profiles ...*entity.Profile) *fakeDirectory {
	d := &fakeDirectory{byId: make(map[string]*entity.Profile), byEmail: make(map[string]*entity.Profile)}
	for _, p := range profiles {
		d.byId[p.ProfileId] = p
		d.byEmail[p.Email] = p
	}
	return d
}

func (d *fakeDirectory) Profile(_ context.Context, profileId string) (*entity.Profile, error) {
	if p, ok := d.byId[profileId]; ok {
		return p, nil
	}
	return nil, identity.ErrProfileNotFound
}

func (d *fakeDirectory) ProfileByEmail(_ context.Context, email string) (*entity.Profile, error) {
	if p, ok := d.byEmail[email]; ok {
		return p, nil
	}
	return nil, identity.ErrProfileNotFound
}

func (d *fakeDirectory) GetOrRegisterProfileByEmail(_ context.Context, email string, autoCreate bool) (*entity.Profile, error) {
	if p, ok := d.byEmail[email]; ok {
		return p, nil
	}
	if !autoCreate {
		return nil, identity.ErrProfileNotFound
	}
	p := &entity.Profile{ProfileId: "auto-" + email, Email: email}
	d.byId[p.ProfileId] = p
	d.byEmail[email] = p
	return p, nil
}

type fakeConf struct {
	vals map[string]bool
}

func (c *fakeConf) GetBool(_ context.Context, key string, def bool) bool {
	if v, ok := c.vals[key]; ok {
		return v
	}
	return def
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T, store *fakePinStore, opts ...func(*testEnv)) (*Manager, *testEnv) {
	t.Helper()
	env := &testEnv{
		aliases:   &fakeAliasStore{m: make(map[string]string)},
		directory: newFakeDirectory(&entity.Profile{ProfileId: "profile-1", Email: "one@example.com"}),
		conf:      &fakeConf{vals: make(map[string]bool)},
	}
	for _, o := range opts {
		o(env)
	}
	gen := passcode.NewGenerator(nil, testLogger())
	return NewManager(store, env.aliases, env.directory, env.conf, gen, testLogger()), env
}

type testEnv struct {
	aliases   *fakeAliasStore
	directory *fakeDirectory
	conf      *fakeConf
}

func TestCreateRejectsUnknownType(t *testing.T) {
	m, _ := newTestManager(t, newFakePinStore())

	_, err := m.Create(context.Background(), &entity.CreatePinRequest{PinType: "Bogus"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestCreateGenericUnsupported(t *testing.T) {
	m, _ := newTestManager(t, newFakePinStore())

	_, err := m.Create(context.Background(), &entity.CreatePinRequest{PinType: "Generic"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestCreatePersonalRequiresExactlyOneEntity(t *testing.T) {
	m, _ := newTestManager(t, newFakePinStore())

	_, err := m.Create(context.Background(), &entity.CreatePinRequest{PinType: "Personal"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))

	_, err = m.Create(context.Background(), &entity.CreatePinRequest{
		PinType:  "Personal",
		Entities: []entity.PinEntity{{EntityId: "profile-1"}, {Email: "two@example.com"}},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestCreatePersonalIsIdempotent(t *testing.T) {
	store := newFakePinStore()
	m, _ := newTestManager(t, store)

	req := &entity.CreatePinRequest{
		PinType:  "Personal",
		Entities: []entity.PinEntity{{EntityId: "profile-1"}},
	}
	first, err := m.Create(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, first.AllocatedPins, 1)
	assert.Len(t, first.AllocatedPins[0].Pin, 10)

	second, err := m.Create(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, second.AllocatedPins, 1)
	assert.Equal(t, first.AllocatedPins[0].Pin, second.AllocatedPins[0].Pin)
	assert.Len(t, store.pins, 1)
}

func TestCreatePersonalRegistersProfileByEmail(t *testing.T) {
	store := newFakePinStore()
	m, env := newTestManager(t, store)

	resp, err := m.Create(context.Background(), &entity.CreatePinRequest{
		PinType:  "Personal",
		Entities: []entity.PinEntity{{Email: "new@example.com"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.AllocatedPins, 1)
	assert.Contains(t, env.directory.byEmail, "new@example.com")
}

func TestCreatePersonalUnknownProfile(t *testing.T) {
	m, _ := newTestManager(t, newFakePinStore())

	_, err := m.Create(context.Background(), &entity.CreatePinRequest{
		PinType:  "Personal",
		Entities: []entity.PinEntity{{EntityId: "ghost"}},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, apperr.CodeProfileNotFound, apperr.CodeOf(err))
}

func TestCreateConferenceRequiresDeactivateOnWhenMandated(t *testing.T) {
	m, env := newTestManager(t, newFakePinStore())
	env.conf.vals[SdcRequireDeactivateOn] = true

	_, err := m.Create(context.Background(), &entity.CreatePinRequest{
		PinType:  "Conference",
		Entities: []entity.PinEntity{{EntityId: "profile-1"}},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestCreateConferenceRejectsFarDeactivateOn(t *testing.T) {
	m, _ := newTestManager(t, newFakePinStore())

	far := time.Now().Add(400 * 24 * time.Hour)
	_, err := m.Create(context.Background(), &entity.CreatePinRequest{
		PinType:   "Conference",
		Entities:  []entity.PinEntity{{EntityId: "profile-1"}},
		PinPolicy: &entity.PinPolicyRequest{DeactivateOn: &far},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestCreateConferenceReservedSkipsDeactivateOnChecks(t *testing.T) {
	store := newFakePinStore()
	m, env := newTestManager(t, store)
	env.conf.vals[SdcRequireDeactivateOn] = true

	reserved := "scheduler"
	resp, err := m.Create(context.Background(), &entity.CreatePinRequest{
		PinType:   "Conference",
		Entities:  []entity.PinEntity{{EntityId: "profile-1"}},
		PinPolicy: &entity.PinPolicyRequest{ReservedBy: &reserved},
	})
	require.NoError(t, err)
	require.Len(t, resp.AllocatedPins, 1)
	assert.Len(t, resp.AllocatedPins[0].Pin, 10)
}

func TestCreateConferenceStoresDeactivateOn(t *testing.T) {
	store := newFakePinStore()
	m, _ := newTestManager(t, store)

	on := time.Now().Add(30 * 24 * time.Hour).UTC()
	resp, err := m.Create(context.Background(), &entity.CreatePinRequest{
		PinType:   "Conference",
		Entities:  []entity.PinEntity{{EntityId: "profile-1"}},
		PinPolicy: &entity.PinPolicyRequest{DeactivateOn: &on},
	})
	require.NoError(t, err)

	stored := store.pins[resp.AllocatedPins[0].Pin]
	require.NotNil(t, stored)
	require.NotNil(t, stored.DeactivateOn)
	assert.True(t, stored.DeactivateOn.Equal(on))
	assert.Equal(t, entity.PinTypeConference, stored.Type)
	assert.Equal(t, "profile-1", stored.OwnerEntityId)
}

func TestCreateConferenceHashesModeratorCode(t *testing.T) {
	store := newFakePinStore()
	m, _ := newTestManager(t, store)

	resp, err := m.Create(context.Background(), &entity.CreatePinRequest{
		PinType:       "Conference",
		Entities:      []entity.PinEntity{{EntityId: "profile-1"}},
		ModeratorCode: "654321",
	})
	require.NoError(t, err)

	stored := store.pins[resp.AllocatedPins[0].Pin]
	require.NotNil(t, stored)
	require.NotEmpty(t, stored.ModeratorCodeHash)
	assert.NotEqual(t, "654321", stored.ModeratorCodeHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.ModeratorCodeHash), []byte("654321")))
}

func TestCreateAttendeeRequiresBasePin(t *testing.T) {
	m, _ := newTestManager(t, newFakePinStore())

	_, err := m.Create(context.Background(), &entity.CreatePinRequest{
		PinType:  "Attendee",
		Entities: []entity.PinEntity{{EntityId: "profile-1"}},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestCreateAttendeeRejectsMissingBasePin(t *testing.T) {
	m, _ := newTestManager(t, newFakePinStore())

	base := "1234567890"
	_, err := m.Create(context.Background(), &entity.CreatePinRequest{
		PinType:   "Attendee",
		Entities:  []entity.PinEntity{{EntityId: "profile-1"}},
		PinPolicy: &entity.PinPolicyRequest{BasePin: &base},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestCreateAttendeeAppendsSuffixPerEntity(t *testing.T) {
	store := newFakePinStore(&entity.Pin{Code: "1234567890", Type: entity.PinTypeConference})
	m, env := newTestManager(t, store)
	env.directory.byId["profile-2"] = &entity.Profile{ProfileId: "profile-2", Email: "two@example.com"}

	base := "1234567890"
	resp, err := m.Create(context.Background(), &entity.CreatePinRequest{
		PinType: "Attendee",
		Entities: []entity.PinEntity{
			{EntityId: "profile-1"},
			{EntityId: "profile-2"},
		},
		PinPolicy: &entity.PinPolicyRequest{BasePin: &base},
	})
	require.NoError(t, err)
	require.Len(t, resp.AllocatedPins, 2)
	assert.Empty(t, resp.Failures)

	for _, res := range resp.AllocatedPins {
		assert.Len(t, res.Pin, 13)
		assert.True(t, strings.HasPrefix(res.Pin, base))
		stored := store.pins[res.Pin]
		require.NotNil(t, stored)
		assert.Equal(t, entity.PinTypeAttendee, stored.Type)
	}
	assert.NotEqual(t, resp.AllocatedPins[0].Pin, resp.AllocatedPins[1].Pin)
}

func TestCreateAttendeeCollectsProfileFailures(t *testing.T) {
	store := newFakePinStore(&entity.Pin{Code: "1234567890", Type: entity.PinTypeConference})
	m, _ := newTestManager(t, store)

	base := "1234567890"
	resp, err := m.Create(context.Background(), &entity.CreatePinRequest{
		PinType: "Attendee",
		Entities: []entity.PinEntity{
			{EntityId: "profile-1"},
			{EntityId: "ghost"},
		},
		PinPolicy: &entity.PinPolicyRequest{BasePin: &base},
	})
	require.NoError(t, err)
	require.Len(t, resp.AllocatedPins, 1)
	require.Len(t, resp.Failures, 1)
	assert.Equal(t, "ghost", resp.Failures[0].EntityId)
	assert.NotEmpty(t, resp.Failures[0].Reason)
}

func TestCreateAttendeeResolvesBaseAlias(t *testing.T) {
	store := newFakePinStore(&entity.Pin{Code: "1234567890", Type: entity.PinTypeConference})
	m, env := newTestManager(t, store)
	env.aliases.m["friendly-name"] = "1234567890"

	alias := "friendly-name"
	resp, err := m.Create(context.Background(), &entity.CreatePinRequest{
		PinType:   "Attendee",
		Entities:  []entity.PinEntity{{EntityId: "profile-1"}},
		PinPolicy: &entity.PinPolicyRequest{BasePin: &alias},
	})
	require.NoError(t, err)
	require.Len(t, resp.AllocatedPins, 1)
	assert.True(t, strings.HasPrefix(resp.AllocatedPins[0].Pin, "1234567890"))
}

func TestFindFollowsAlias(t *testing.T) {
	store := newFakePinStore(&entity.Pin{Code: "1234567890", Type: entity.PinTypeConference})
	m, env := newTestManager(t, store)
	env.aliases.m["friendly-name"] = "1234567890"

	found, err := m.Find(context.Background(), "friendly-name")
	require.NoError(t, err)
	assert.Equal(t, "1234567890", found.Code)
}

func TestFindNotFound(t *testing.T) {
	m, _ := newTestManager(t, newFakePinStore())

	_, err := m.Find(context.Background(), "0000000000")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, apperr.CodePinNotFound, apperr.CodeOf(err))
}

func TestReclaimRequiresPinAndOwner(t *testing.T) {
	m, _ := newTestManager(t, newFakePinStore())

	_, err := m.Reclaim(context.Background(), &entity.ReclaimPinRequest{Pin: "1234567890"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))

	_, err = m.Reclaim(context.Background(), &entity.ReclaimPinRequest{PinOwnerProfileId: "profile-1"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestReclaimUnownedPin(t *testing.T) {
	store := newFakePinStore(&entity.Pin{Code: "1234567890", Type: entity.PinTypePersonal})
	m, _ := newTestManager(t, store)

	claimed, err := m.Reclaim(context.Background(), &entity.ReclaimPinRequest{
		Pin: "1234567890", PinOwnerProfileId: "profile-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "profile-1", claimed.OwnerEntityId)
	assert.Equal(t, "profile-1", store.pins["1234567890"].OwnerEntityId)
}

func TestReclaimOwnedPinConflicts(t *testing.T) {
	store := newFakePinStore(&entity.Pin{
		Code: "1234567890", Type: entity.PinTypePersonal, OwnerEntityId: "someone-else",
	})
	m, _ := newTestManager(t, store)

	_, err := m.Reclaim(context.Background(), &entity.ReclaimPinRequest{
		Pin: "1234567890", PinOwnerProfileId: "profile-1",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnprocessable, apperr.KindOf(err))
	assert.Equal(t, apperr.CodePinNotReclaimed, apperr.CodeOf(err))
}

func TestReclaimMissingPin(t *testing.T) {
	m, _ := newTestManager(t, newFakePinStore())

	_, err := m.Reclaim(context.Background(), &entity.ReclaimPinRequest{
		Pin: "0000000000", PinOwnerProfileId: "profile-1",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, apperr.CodePinNotFound, apperr.CodeOf(err))
}

func TestRecreateExpiresOldAndAllocatesNew(t *testing.T) {
	old := &entity.Pin{Code: "1234567890", Type: entity.PinTypePersonal, OwnerEntityId: "profile-1"}
	store := newFakePinStore(old)
	m, _ := newTestManager(t, store)

	resp, err := m.Recreate(context.Background(), &entity.RecreatePinRequest{
		Pin: "1234567890", PinOwnerProfileId: "profile-1",
	})
	require.NoError(t, err)
	require.Len(t, resp.AllocatedPins, 1)
	newCode := resp.AllocatedPins[0].Pin

	assert.True(t, old.Expired)
	assert.NotEqual(t, "1234567890", newCode)
	require.NotNil(t, store.pins[newCode])
	assert.Equal(t, "profile-1", store.pins[newCode].OwnerEntityId)
}

func TestRecreateRebindsAlias(t *testing.T) {
	old := &entity.Pin{
		Code: "1234567890", Type: entity.PinTypePersonal,
		OwnerEntityId: "profile-1", Alias: "friendly-name",
	}
	store := newFakePinStore(old)
	m, env := newTestManager(t, store)
	env.aliases.m["friendly-name"] = "1234567890"

	resp, err := m.Recreate(context.Background(), &entity.RecreatePinRequest{
		Pin: "1234567890", PinOwnerProfileId: "profile-1",
	})
	require.NoError(t, err)

	newCode := resp.AllocatedPins[0].Pin
	assert.Equal(t, newCode, env.aliases.m["friendly-name"])
	assert.Equal(t, "friendly-name", store.pins[newCode].Alias)
}

func TestRecreateToleratesMissingAliasRecord(t *testing.T) {
	old := &entity.Pin{
		Code: "1234567890", Type: entity.PinTypePersonal,
		OwnerEntityId: "profile-1", Alias: "friendly-name",
	}
	store := newFakePinStore(old)
	m, _ := newTestManager(t, store)

	_, err := m.Recreate(context.Background(), &entity.RecreatePinRequest{
		Pin: "1234567890", PinOwnerProfileId: "profile-1",
	})
	require.NoError(t, err)
}

func TestRecreateWrongOwnerConflicts(t *testing.T) {
	store := newFakePinStore(&entity.Pin{
		Code: "1234567890", Type: entity.PinTypePersonal, OwnerEntityId: "someone-else",
	})
	m, _ := newTestManager(t, store)

	_, err := m.Recreate(context.Background(), &entity.RecreatePinRequest{
		Pin: "1234567890", PinOwnerProfileId: "profile-1",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnprocessable, apperr.KindOf(err))
	assert.Equal(t, apperr.CodePinNotRecreated, apperr.CodeOf(err))
}

func TestExpire(t *testing.T) {
	store := newFakePinStore(&entity.Pin{Code: "1234567890", Type: entity.PinTypeConference})
	m, _ := newTestManager(t, store)

	require.NoError(t, m.Expire(context.Background(), "1234567890"))
	assert.True(t, store.pins["1234567890"].Expired)
}
