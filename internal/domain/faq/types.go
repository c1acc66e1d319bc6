package faq

import (
	"strings"
	"time"
)

// Record is one answer fetched from the knowledge base.
type Record struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Language string `json:"language"`
	Category string `json:"category"`
}

// Entry is a question block inside a storefront theme section.
type Entry struct {
	BlockID   string `json:"id"`
	Handle    string `json:"handle"`
	Heading   string `json:"heading"`
	Content   string `json:"content"`
	SectionID string `json:"sectionId"`
}

// Section describes a section of the theme template.
type Section struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Category      string `json:"category,omitempty"`
	Icon          string `json:"icon,omitempty"`
	QuestionCount int    `json:"questionCount"`
}

// Link pairs a knowledge base record with the handle it was published under.
type Link struct {
	SourceID           string    `json:"sourceId"`
	Handle             string    `json:"handle"`
	SourceQuestion     string    `json:"sourceQuestion"`
	SourceAnswer       string    `json:"sourceAnswer"`
	DestinationHeading string    `json:"destinationHeading"`
	Score              float64   `json:"score,omitempty"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Languages is the configured allow-list of language codes.
type Languages []string

// Contains reports whether lang is allowed. Comparison ignores case.
func (l Languages) Contains(lang string) bool {
	needle := strings.ToLower(strings.TrimSpace(lang))
	for _, candidate := range l {
		if candidate == needle {
			return true
		}
	}
	return false
}

// FileSuffix converts a language code into the form used in export file names.
func FileSuffix(lang string) string {
	return strings.ReplaceAll(strings.ToLower(lang), "-", "_")
}
