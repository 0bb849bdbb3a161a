// Package platform holds OS-specific hints for sequential whole-file reads.
package platform
