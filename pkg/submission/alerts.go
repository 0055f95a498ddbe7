package submission

import "fmt"

// Alert is a user-visible error record.
type Alert struct {
	// stable identity of the alert. The same failure yields the same ID.
	ID string `yaml:"id" json:"id"`

	Key Key `yaml:"key" json:"key"`

	// deterministic title, "Validation error N".
	Title string `yaml:"title" json:"title"`

	Field       string `yaml:"field,omitempty" json:"field,omitempty"`
	Description string `yaml:"description" json:"description"`
}

// Alerts is the list of alerts of a session.
//
// It is not safe for concurrent use; Orchestrator guards it.
type Alerts struct {
	items []Alert
}

func alertID(key Key, field, description string) string {
	return fmt.Sprintf("%s|%s|%s", key, field, description)
}

// Raise records an alert. The same (key, field, description) is recorded once.
func (a *Alerts) Raise(key Key, field, description string) Alert {
	id := alertID(key, field, description)
	for _, al := range a.items {
		if al.ID == id {
			return al
		}
	}
	al := Alert{
		ID:          id,
		Key:         key,
		Field:       field,
		Description: description,
	}
	a.items = append(a.items, al)
	a.retitle()
	for _, x := range a.items {
		if x.ID == id {
			return x
		}
	}
	return al
}

// Dismiss removes an alert by its ID.
func (a *Alerts) Dismiss(id string) {
	kept := a.items[:0]
	for _, al := range a.items {
		if al.ID != id {
			kept = append(kept, al)
		}
	}
	a.items = kept
	a.retitle()
}

// ClearFor removes every alert about key.
func (a *Alerts) ClearFor(key Key) {
	kept := a.items[:0]
	for _, al := range a.items {
		if al.Key != key {
			kept = append(kept, al)
		}
	}
	a.items = kept
	a.retitle()
}

// List returns a copy of the alerts, in the order of raising.
func (a *Alerts) List() []Alert {
	ret := make([]Alert, len(a.items))
	copy(ret, a.items)
	return ret
}

// For returns alerts about key.
func (a *Alerts) For(key Key) []Alert {
	ret := []Alert{}
	for _, al := range a.items {
		if al.Key == key {
			ret = append(ret, al)
		}
	}
	return ret
}

func (a *Alerts) retitle() {
	for i := range a.items {
		a.items[i].Title = fmt.Sprintf("Validation error %d", i)
	}
}
