// Package model provides the domain types shared by every kiosk package.
//
// This package contains type definitions and small pure helpers only. All other
// internal packages import model; model imports nothing internal.
//
// Key conventions:
//   - Dining hall and chef ids are int64 (remote bigint); employee ids are opaque strings
//   - Dates are local calendar dates formatted as YYYY-MM-DD
//   - Times of day are local wall-clock "HH:MM"
//   - All JSON tags use snake_case
package model
