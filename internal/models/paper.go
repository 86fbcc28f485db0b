package models

import "time"

type Paper struct {
	ID         string
	Title      string
	Authors    []string
	Categories []string
	Published  time.Time
	AbsURL     string
	PDFURL     string
	Abstract   string
}

type Review struct {
	Paper    Paper
	Domain   string
	Analysis string
}

// ArchivedReview is a review row read back from the archive store.
type ArchivedReview struct {
	ID         string
	Title      string
	URL        string
	Domain     string
	Categories string
	Published  time.Time
	Review     string
}
