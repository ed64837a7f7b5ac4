package config

import (
	"fmt"
	"os"
)

// StepAction identifies what a login step does.
type StepAction string

// Login step actions.
const (
	// ActionFill types a value into the first matching input.
	ActionFill StepAction = "fill"
	// ActionClick clicks the first matching element.
	ActionClick StepAction = "click"
	// ActionWait pauses for a fixed duration.
	ActionWait StepAction = "wait"
)

// Credential references accepted in a fill step.
const (
	// CredentialUsername fills the configured username.
	CredentialUsername = "username"
	// CredentialPassword fills the configured password.
	CredentialPassword = "password"
)

// LoginStep is one entry in the ordered sequence executed on the login page.
//
// Design decision: Login forms vary too much for a single hard-coded flow,
// so the sequence is data. Each step carries ordered fallback selectors and
// the first one present on the page wins, which covers the common variations
// (email vs. username inputs, button vs. input submits) without per-site code.
type LoginStep struct {
	// Action is what this step does: fill, click, or wait.
	Action StepAction `yaml:"action"`

	// Selectors are CSS selectors tried in order; the first match is used.
	// Required for fill and click.
	Selectors []string `yaml:"selectors,omitempty"`

	// Credential names a configured credential ("username" or "password")
	// to use as the fill value. Takes precedence over ValueEnv and Value.
	Credential string `yaml:"credential,omitempty"`

	// ValueEnv names an environment variable holding the fill value.
	ValueEnv string `yaml:"valueEnv,omitempty"`

	// Value is a literal fill value. Avoid for secrets; prefer Credential
	// or ValueEnv so config files stay safe to share.
	Value string `yaml:"value,omitempty"`

	// Wait is the pause duration for a wait step, e.g. "3s".
	Wait Duration `yaml:"wait,omitempty"`
}

// Validate checks that the step is well formed.
func (s LoginStep) Validate() error {
	switch s.Action {
	case ActionFill:
		if len(s.Selectors) == 0 {
			return fmt.Errorf("%w: fill step needs at least one selector", ErrInvalidLoginStep)
		}
		if s.Credential == "" && s.ValueEnv == "" && s.Value == "" {
			return fmt.Errorf("%w: fill step needs a credential, valueEnv, or value", ErrInvalidLoginStep)
		}
		if s.Credential != "" && s.Credential != CredentialUsername && s.Credential != CredentialPassword {
			return fmt.Errorf("%w: unknown credential %q", ErrInvalidLoginStep, s.Credential)
		}
	case ActionClick:
		if len(s.Selectors) == 0 {
			return fmt.Errorf("%w: click step needs at least one selector", ErrInvalidLoginStep)
		}
	case ActionWait:
		if s.Wait <= 0 {
			return fmt.Errorf("%w: wait step needs a positive duration", ErrInvalidLoginStep)
		}
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidLoginStep, s.Action)
	}
	return nil
}

// Default selector fallbacks mirror common login form markup. Type-based
// selectors come first because they are the most reliable signal; name and id
// attributes cover forms that use generic text inputs.
var (
	defaultUsernameSelectors = []string{
		"input[type='email']",
		"input[type='text']",
		"input[name='username']",
		"input[id='username']",
		"input[name='user']",
		"input[id='user']",
		"input[name='userid']",
		"input[id='userid']",
	}
	defaultPasswordSelectors = []string{
		"input[type='password']",
		"input[name='password']",
		"input[id='password']",
	}
	defaultSubmitSelectors = []string{
		"button[type='submit']",
		"input[type='submit']",
		"button.login",
		"input.login",
	}
)

// DefaultLoginSteps returns the login sequence used when the config does not
// define one: fill the username, fill the password, submit the form, then
// wait for the post-login redirect to settle.
func DefaultLoginSteps(settle Duration) []LoginStep {
	return []LoginStep{
		{Action: ActionFill, Selectors: defaultUsernameSelectors, Credential: CredentialUsername},
		{Action: ActionFill, Selectors: defaultPasswordSelectors, Credential: CredentialPassword},
		{Action: ActionClick, Selectors: defaultSubmitSelectors},
		{Action: ActionWait, Wait: settle},
	}
}

// ResolveLoginSteps returns the effective login sequence with every fill
// value made concrete. Configured steps are used when present, otherwise
// DefaultLoginSteps. Credential references resolve to the configured
// username and password; ValueEnv references resolve from the environment.
func (c *Config) ResolveLoginSteps() ([]LoginStep, error) {
	steps := c.LoginSteps
	if len(steps) == 0 {
		steps = DefaultLoginSteps(Duration(c.LoginSettle))
	}

	resolved := make([]LoginStep, len(steps))
	for i, step := range steps {
		if err := step.Validate(); err != nil {
			return nil, fmt.Errorf("login step %d: %w", i+1, err)
		}
		if step.Action == ActionFill {
			switch {
			case step.Credential == CredentialUsername:
				step.Value = c.Username
			case step.Credential == CredentialPassword:
				step.Value = c.Password
			case step.ValueEnv != "":
				step.Value = os.Getenv(step.ValueEnv)
			}
			if step.Value == "" {
				return nil, fmt.Errorf("login step %d: %w: fill value resolved empty", i+1, ErrInvalidLoginStep)
			}
		}
		resolved[i] = step
	}
	return resolved, nil
}
