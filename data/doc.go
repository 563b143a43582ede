// Package data defines examples, label spaces and datasets consumed by feature
// generators and trainers.
package data
