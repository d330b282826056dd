// Package utils provides common utility functions for Baby Book.
// It includes helpers for slug generation and title formatting shared by
// the asset pipeline and the books service.
package utils
