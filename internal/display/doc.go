// Package display renders session steps to the subject.
//
// TUI is an interactive terminal renderer built on bubbletea. The operator
// confirms checkpoints with space and marks spoken answers with y or n.
// Headless presents steps without a screen and answers from a configured
// accuracy; it drives simulated sessions and tests.
package display
