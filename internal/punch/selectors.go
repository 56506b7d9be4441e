// Package punch implements the punch flow: a linear step machine that
// authenticates, navigates to the punch page, checks button availability,
// performs (or simulates) the punch, and verifies the result.
package punch

// Selectors locates the pieces of the target page. The target application's
// structure is configuration data, not logic; everything here can be
// overridden from the config file.
type Selectors struct {
	UsernameInput string `yaml:"username_input"`
	PasswordInput string `yaml:"password_input"`
	LoginButton   string `yaml:"login_button"`
	LoginError    string `yaml:"login_error"`
	HomePanel     string `yaml:"home_panel"`

	PunchMenuItem string `yaml:"punch_menu_item"`
	PunchPanel    string `yaml:"punch_panel"`
	LoadingHint   string `yaml:"loading_hint"`
	GPSFrame      string `yaml:"gps_frame"`

	DateText      string `yaml:"date_text"`
	TimeText      string `yaml:"time_text"`
	LocationInput string `yaml:"location_input"`

	EnterButton string `yaml:"enter_button"`
	ExitButton  string `yaml:"exit_button"`
}

// DefaultSelectors matches the Ionic-based HR frontend the agent was built
// against.
func DefaultSelectors() Selectors {
	return Selectors{
		UsernameInput: `input[name="username"]`,
		PasswordInput: `input[name="password"]`,
		LoginButton:   `button[type="submit"]`,
		LoginError:    `.login-error, .alert-danger`,
		HomePanel:     `.home-page`,

		PunchMenuItem: `ion-item.menu-punch`,
		PunchPanel:    `.punch-page .toolbar-title`,
		LoadingHint:   `ion-loading, .loading-spinner`,
		GPSFrame:      `#divImap iframe`,

		DateText:      `.punch-page .date:nth-of-type(1)`,
		TimeText:      `.punch-page .date:nth-of-type(2)`,
		LocationInput: `#addressDiv ion-input input`,

		EnterButton: `button.btn-sign-in`,
		ExitButton:  `button.btn-sign-out`,
	}
}

// buttonFor maps an action to its button selector.
func (s Selectors) buttonFor(enter bool) string {
	if enter {
		return s.EnterButton
	}
	return s.ExitButton
}
