// Package events provides the bounded ring buffer of recent change
// notifications. External pollers read it for status reporting and the
// scheduler uses its newest entry to adapt the sweep interval.
package events
