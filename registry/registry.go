package registry

import (
	"sync"

	"github.com/openrobots-dev/rosnode/xerr"
)

// Registry is the shared source of truth consulted by both the Slave
// RPC dispatcher (to answer requestTopic, publisherUpdate, paramUpdate,
// …) and the TCPROS engine (to route a new session to its handler).
type Registry struct {
	typesMu sync.RWMutex
	types   map[string]TypeDescriptor

	topicsMu sync.RWMutex
	topics   map[string]*TopicEntry

	servicesMu sync.RWMutex
	services   map[string]*ServiceEntry

	paramsMu sync.RWMutex
	params   map[string]*ParamEntry

	sessMu   sync.RWMutex
	sessions map[string]map[string]Abortable // topic/service name -> session id -> handle
}

// Abortable is the subset of tcpros.Session the registry needs to tear
// down a live connection it no longer has a home for: RequestExit sets
// the session's cooperative exit flag and aborts its socket.
type Abortable interface {
	RequestExit()
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		types:    make(map[string]TypeDescriptor),
		topics:   make(map[string]*TopicEntry),
		services: make(map[string]*ServiceEntry),
		params:   make(map[string]*ParamEntry),
		sessions: make(map[string]map[string]Abortable),
	}
}

// RegisterType registers a named type descriptor. Idempotent on an
// identical re-register; a name collision with a different md5/def is a
// conflict.
func (r *Registry) RegisterType(td TypeDescriptor) error {
	r.typesMu.Lock()
	defer r.typesMu.Unlock()

	if existing, ok := r.types[td.Name]; ok {
		if existing.MD5Sum != td.MD5Sum || existing.Definition != td.Definition {
			return xerr.BadParam.Errorf("type %q already registered with a different md5sum or definition", td.Name)
		}
		return nil
	}
	r.types[td.Name] = td
	return nil
}

// LookupType returns the registered type descriptor for name.
func (r *Registry) LookupType(name string) (TypeDescriptor, error) {
	r.typesMu.RLock()
	defer r.typesMu.RUnlock()

	td, ok := r.types[name]
	if !ok {
		return TypeDescriptor{}, xerr.MapMiss.Errorf("type %q not registered", name)
	}
	return td, nil
}

// AdvertiseTopic adds or updates a published/subscribed topic entry.
// Re-advertising the same name with the same role is a deterministic
// no-op, so a node retrying a failed advertise never ends up with a
// duplicate or inconsistent entry.
func (r *Registry) AdvertiseTopic(te TopicEntry) error {
	r.topicsMu.Lock()
	defer r.topicsMu.Unlock()

	if existing, ok := r.topics[te.Name]; ok && existing.Role == te.Role {
		return nil
	}
	cp := te
	r.topics[te.Name] = &cp
	return nil
}

// UnadvertiseTopic removes a topic entry. Removing an unknown topic is
// MapMiss.
func (r *Registry) UnadvertiseTopic(name string) error {
	r.topicsMu.Lock()
	defer r.topicsMu.Unlock()

	if _, ok := r.topics[name]; !ok {
		return xerr.MapMiss.Errorf("topic %q not advertised", name)
	}
	delete(r.topics, name)
	return nil
}

// SubscribeTopic registers a subscribed topic entry.
func (r *Registry) SubscribeTopic(te TopicEntry) error {
	te.Role = RoleSubscriber
	return r.AdvertiseTopic(te)
}

// UnsubscribeTopic removes a subscribed topic entry and tears down its
// live sessions, so a later re-lookup correctly reports the topic gone
// instead of resurrecting the old entry.
func (r *Registry) UnsubscribeTopic(name string) error {
	if err := r.UnadvertiseTopic(name); err != nil {
		return err
	}
	r.abortSessions(name)
	return nil
}

// abortSessions calls RequestExit on every live session handle
// registered under name and drops the bookkeeping entry.
func (r *Registry) abortSessions(name string) {
	r.sessMu.Lock()
	set := r.sessions[name]
	delete(r.sessions, name)
	r.sessMu.Unlock()

	for _, sess := range set {
		sess.RequestExit()
	}
}

// LookupTopic returns the registry entry for name.
func (r *Registry) LookupTopic(name string) (TopicEntry, error) {
	r.topicsMu.RLock()
	defer r.topicsMu.RUnlock()

	te, ok := r.topics[name]
	if !ok {
		return TopicEntry{}, xerr.MapMiss.Errorf("topic %q not found", name)
	}
	return *te, nil
}

// TopicNames returns the names of every currently registered topic, in
// no particular order.
func (r *Registry) TopicNames() []string {
	r.topicsMu.RLock()
	defer r.topicsMu.RUnlock()

	names := make([]string, 0, len(r.topics))
	for name := range r.topics {
		names = append(names, name)
	}
	return names
}

// ServiceNames returns the names of every currently registered service,
// in no particular order.
func (r *Registry) ServiceNames() []string {
	r.servicesMu.RLock()
	defer r.servicesMu.RUnlock()

	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	return names
}

// AdvertiseService adds or updates a published service entry.
func (r *Registry) AdvertiseService(se ServiceEntry) error {
	r.servicesMu.Lock()
	defer r.servicesMu.Unlock()

	if existing, ok := r.services[se.Name]; ok && existing.Role == se.Role {
		return nil
	}
	cp := se
	r.services[se.Name] = &cp
	return nil
}

// UnadvertiseService removes a service entry and tears down its live
// sessions, mirroring UnsubscribeTopic's contract.
func (r *Registry) UnadvertiseService(name string) error {
	r.servicesMu.Lock()
	if _, ok := r.services[name]; !ok {
		r.servicesMu.Unlock()
		return xerr.MapMiss.Errorf("service %q not advertised", name)
	}
	delete(r.services, name)
	r.servicesMu.Unlock()

	r.abortSessions(name)
	return nil
}

// CallService registers an outstanding outbound service call entry.
func (r *Registry) CallService(se ServiceEntry) error {
	se.Role = RoleCaller
	return r.AdvertiseService(se)
}

// LookupService returns the registry entry for name.
func (r *Registry) LookupService(name string) (ServiceEntry, error) {
	r.servicesMu.RLock()
	defer r.servicesMu.RUnlock()

	se, ok := r.services[name]
	if !ok {
		return ServiceEntry{}, xerr.MapMiss.Errorf("service %q not found", name)
	}
	return *se, nil
}

// SubscribeParam registers interest in a parameter.
func (r *Registry) SubscribeParam(name string, value interface{}) {
	r.paramsMu.Lock()
	defer r.paramsMu.Unlock()
	r.params[name] = &ParamEntry{Name: name, Value: value}
}

// UnsubscribeParam removes interest in a parameter.
func (r *Registry) UnsubscribeParam(name string) error {
	r.paramsMu.Lock()
	defer r.paramsMu.Unlock()

	if _, ok := r.params[name]; !ok {
		return xerr.MapMiss.Errorf("param %q not subscribed", name)
	}
	delete(r.params, name)
	return nil
}

// UpdateParam records a new observed value for a subscribed parameter,
// returning MapMiss if the node never subscribed to it.
func (r *Registry) UpdateParam(name string, value interface{}) error {
	r.paramsMu.Lock()
	defer r.paramsMu.Unlock()

	pe, ok := r.params[name]
	if !ok {
		return xerr.MapMiss.Errorf("param %q not subscribed", name)
	}
	pe.Value = value
	return nil
}

// AddSession records a live session handle under the owning
// topic/service name, so UnsubscribeTopic/UnadvertiseService can force
// it closed later via RequestExit.
func (r *Registry) AddSession(name, sessionID string, sess Abortable) {
	r.sessMu.Lock()
	defer r.sessMu.Unlock()

	set, ok := r.sessions[name]
	if !ok {
		set = make(map[string]Abortable)
		r.sessions[name] = set
	}
	set[sessionID] = sess
}

// RemoveSession drops a session id from the owning topic/service's set.
// Called only by the worker thread servicing that session.
func (r *Registry) RemoveSession(name, sessionID string) {
	r.sessMu.Lock()
	defer r.sessMu.Unlock()

	if set, ok := r.sessions[name]; ok {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(r.sessions, name)
		}
	}
}

// CountSessions returns the number of live sessions for name.
func (r *Registry) CountSessions(name string) int {
	r.sessMu.RLock()
	defer r.sessMu.RUnlock()
	return len(r.sessions[name])
}
