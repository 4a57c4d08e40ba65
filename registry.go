package courier

import "sync"

// EmailFactory builds the type behaviour for an email record. Factories
// usually close over their dependencies, a user lookup for instance.
type EmailFactory func(*Email) EmailType

// SmsFactory builds the type behaviour for an SMS record.
type SmsFactory func(*Sms) SmsType

// Registry maps type names to factories, separately per message kind. The
// same name may exist for both an email and an SMS type. Registering a name
// twice replaces the previous factory.
type Registry struct {
	mu     sync.RWMutex
	emails map[string]EmailFactory
	sms    map[string]SmsFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		emails: make(map[string]EmailFactory),
		sms:    make(map[string]SmsFactory),
	}
}

// RegisterEmail registers an email type under a name.
func (r *Registry) RegisterEmail(name string, factory EmailFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emails[name] = factory
}

// RegisterSms registers an SMS type under a name.
func (r *Registry) RegisterSms(name string, factory SmsFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sms[name] = factory
}

// EmailTypes lists the registered email type names.
func (r *Registry) EmailTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.emails))
	for name := range r.emails {
		out = append(out, name)
	}
	return out
}

// SmsTypes lists the registered SMS type names.
func (r *Registry) SmsTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sms))
	for name := range r.sms {
		out = append(out, name)
	}
	return out
}

func (r *Registry) emailFactory(name string) (EmailFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.emails[name]
	return factory, ok
}

func (r *Registry) smsFactory(name string) (SmsFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.sms[name]
	return factory, ok
}
