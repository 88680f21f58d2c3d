package portal

import "fmt"

// Selectors maps the portal's markup to the pieces the collector needs.
// CSS selectors are used for elements; labels are matched against the own
// text of FragmentContainer elements.
type Selectors struct {
	UsernameInput string `mapstructure:"username_input" json:"username_input"`
	PasswordInput string `mapstructure:"password_input" json:"password_input"`
	SubmitButton  string `mapstructure:"submit_button" json:"submit_button"`

	// OrderToggle matches the disclosure control of every order entry
	OrderToggle string `mapstructure:"order_toggle" json:"order_toggle"`
	// OrderScope is the entry container, looked up with closest() from the
	// toggle. Empty means the smallest ancestor whose visible text holds
	// both labels.
	OrderScope string `mapstructure:"order_scope" json:"order_scope"`
	// CollapseControl closes the disclosed entry
	CollapseControl string `mapstructure:"collapse_control" json:"collapse_control"`

	FragmentContainer string `mapstructure:"fragment_container" json:"fragment_container"`
	IdentityLabel     string `mapstructure:"identity_label" json:"identity_label"`
	IdentityValue     string `mapstructure:"identity_value" json:"identity_value"`
	MeasurementLabel  string `mapstructure:"measurement_label" json:"measurement_label"`
}

// DefaultSelectors returns the locators of the Genomed order page
func DefaultSelectors() Selectors {
	return Selectors{
		UsernameInput:     "#username",
		PasswordInput:     "#passwd",
		SubmitButton:      ".pole_submit",
		OrderToggle:       ".span_rozwin",
		CollapseControl:   "a.span_nie",
		FragmentContainer: "div",
		IdentityLabel:     "ID:",
		IdentityValue:     "b",
		MeasurementLabel:  "Tm =",
	}
}

// Validate reports the first required locator that is empty
func (s Selectors) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"username_input", s.UsernameInput},
		{"password_input", s.PasswordInput},
		{"submit_button", s.SubmitButton},
		{"order_toggle", s.OrderToggle},
		{"collapse_control", s.CollapseControl},
		{"fragment_container", s.FragmentContainer},
		{"identity_label", s.IdentityLabel},
		{"identity_value", s.IdentityValue},
		{"measurement_label", s.MeasurementLabel},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("selector %s cannot be empty", r.name)
		}
	}
	return nil
}
