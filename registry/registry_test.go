package registry_test

import (
	"testing"

	"github.com/openrobots-dev/rosnode/registry"
	"github.com/openrobots-dev/rosnode/xerr"
)

func TestAdvertiseTopicIdempotent(t *testing.T) {
	r := registry.New()
	te := registry.TopicEntry{Name: "/chatter", Role: registry.RolePublisher}

	if err := r.AdvertiseTopic(te); err != nil {
		t.Fatalf("first advertise: %v", err)
	}
	if err := r.AdvertiseTopic(te); err != nil {
		t.Fatalf("second advertise should be a deterministic no-op, got %v", err)
	}
}

func TestLookupUnknownTopicIsMapMiss(t *testing.T) {
	r := registry.New()
	if _, err := r.LookupTopic("/nope"); !xerr.Is(err, xerr.MapMiss) {
		t.Fatalf("expected MapMiss, got %v", err)
	}
}

// fakeSession is a minimal registry.Abortable used to verify that
// unsubscribing/unadvertising actually reaches into live sessions
// instead of only dropping the bookkeeping entry.
type fakeSession struct {
	exited bool
}

func (f *fakeSession) RequestExit() {
	f.exited = true
}

func TestUnsubscribeTopicRemovesEntryAndSessions(t *testing.T) {
	r := registry.New()
	te := registry.TopicEntry{Name: "/chatter"}
	if err := r.SubscribeTopic(te); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	sess := &fakeSession{}
	r.AddSession("/chatter", "sess-1", sess)
	if got := r.CountSessions("/chatter"); got != 1 {
		t.Fatalf("expected 1 session, got %d", got)
	}

	if err := r.UnsubscribeTopic("/chatter"); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}

	if _, err := r.LookupTopic("/chatter"); !xerr.Is(err, xerr.MapMiss) {
		t.Fatalf("expected topic to be gone after unsubscribe")
	}
	if got := r.CountSessions("/chatter"); got != 0 {
		t.Fatalf("expected 0 sessions for an unsubscribed topic, got %d", got)
	}
	if !sess.exited {
		t.Fatalf("expected the live session to be aborted by UnsubscribeTopic")
	}
}

func TestUnadvertiseServiceTearsDownSessions(t *testing.T) {
	r := registry.New()
	se := registry.ServiceEntry{Name: "/add", Role: registry.RoleServer}
	if err := r.AdvertiseService(se); err != nil {
		t.Fatalf("advertise: %v", err)
	}
	sess := &fakeSession{}
	r.AddSession("/add", "sess-1", sess)

	if err := r.UnadvertiseService("/add"); err != nil {
		t.Fatalf("unadvertise: %v", err)
	}
	if !sess.exited {
		t.Fatalf("expected the live session to be aborted by UnadvertiseService")
	}
	if got := r.CountSessions("/add"); got != 0 {
		t.Fatalf("expected 0 sessions after unadvertise, got %d", got)
	}
}

func TestRegisterTypeConflict(t *testing.T) {
	r := registry.New()
	td := registry.TypeDescriptor{Name: "std_msgs/String", MD5Sum: "992ce8a1687cec8c8bd883ec73ca41d1"}
	if err := r.RegisterType(td); err != nil {
		t.Fatalf("register: %v", err)
	}
	// Identical re-register is idempotent.
	if err := r.RegisterType(td); err != nil {
		t.Fatalf("idempotent re-register: %v", err)
	}

	conflicting := td
	conflicting.MD5Sum = "deadbeefdeadbeefdeadbeefdeadbeef"
	if err := r.RegisterType(conflicting); !xerr.Is(err, xerr.BadParam) {
		t.Fatalf("expected BadParam on conflicting re-register, got %v", err)
	}
}

func TestSessionCountZeroWhenNoLiveSessions(t *testing.T) {
	r := registry.New()
	if got := r.CountSessions("/nothing"); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestUpdateParamRequiresSubscription(t *testing.T) {
	r := registry.New()
	if err := r.UpdateParam("/unknown", 1); !xerr.Is(err, xerr.MapMiss) {
		t.Fatalf("expected MapMiss, got %v", err)
	}

	r.SubscribeParam("/known", 0)
	if err := r.UpdateParam("/known", 42); err != nil {
		t.Fatalf("update: %v", err)
	}
}
