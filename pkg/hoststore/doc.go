// Package hoststore rebuilds a plugin's UI tree on the host from the
// Commands it sends, one batch at a time, and derives view state such as
// the selected item and its primary and secondary actions.
package hoststore
