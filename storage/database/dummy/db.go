package dummydb

import (
	"context"
	"sync"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/account"
	"github.com/trezcool/classroom/core/course"
	"github.com/trezcool/classroom/core/progress"
)

// DB is an in-memory store mirroring the constraints of the postgres schema:
// unique usernames/emails, one entry per (student, course) and cascading deletes.
type DB struct {
	sync.RWMutex
	tables
}

type tables struct {
	seq         map[string]int64
	accounts    map[int64]account.Account
	students    map[int64]account.StudentProfile
	instructors map[int64]account.InstructorProfile
	courses     map[int64]course.Course
	entries     map[int64]progress.Entry
}

var _ core.DB = (*DB)(nil) // interface compliance check

func Open() (*DB, error) {
	return &DB{tables: newTables()}, nil
}

func newTables() tables {
	return tables{
		seq:         make(map[string]int64),
		accounts:    make(map[int64]account.Account),
		students:    make(map[int64]account.StudentProfile),
		instructors: make(map[int64]account.InstructorProfile),
		courses:     make(map[int64]course.Course),
		entries:     make(map[int64]progress.Entry),
	}
}

func (t tables) copy() tables {
	c := newTables()
	for k, v := range t.seq {
		c.seq[k] = v
	}
	for k, v := range t.accounts {
		c.accounts[k] = v
	}
	for k, v := range t.students {
		c.students[k] = v
	}
	for k, v := range t.instructors {
		c.instructors[k] = v
	}
	for k, v := range t.courses {
		c.courses[k] = v
	}
	for k, v := range t.entries {
		c.entries[k] = v
	}
	return c
}

// nextID must be called with the write lock held.
func (db *DB) nextID(table string) int64 {
	db.seq[table]++
	return db.seq[table]
}

// InTx restores the tables as they were before fn if fn fails.
// Transactions are not isolated from each other.
func (db *DB) InTx(_ context.Context, fn func(exec core.DBExecutor) error) error {
	db.RLock()
	snapshot := db.tables.copy()
	db.RUnlock()

	if err := fn(nil); err != nil {
		db.Lock()
		db.tables = snapshot
		db.Unlock()
		return err
	}
	return nil
}

// Reset empties all the tables.
func (db *DB) Reset() {
	db.Lock()
	defer db.Unlock()
	db.tables = newTables()
}
