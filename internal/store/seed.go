package store

import (
	"context"
	"time"
)

// Seed populates an empty database with a small demo roster: two recent
// data-engineering joiners, two senior mentors in different locations, and
// one employee outside the target role. It is a no-op when the table already
// has rows.
func (s *Store) Seed(ctx context.Context, now time.Time) error {
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}
	n, err := s.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	rows := []Employee{
		{Name: "Kaushal Vachhani", Email: "kaushal.vachhani@example.com", Role: "Data Engineer", Department: "Data Platform", DateJoined: now, Location: "Bengaluru", Level: "junior", ManagerEmail: "lead.de@example.com"},
		{Name: "Asha Patel", Email: "asha.patel@example.com", Role: "Data Engineer", Department: "Data Platform", DateJoined: now.AddDate(0, 0, -100), Location: "Bengaluru", Level: "junior", ManagerEmail: "lead.de@example.com"},
		{Name: "Neeraj Singh", Email: "neeraj.singh@example.com", Role: "Data Engineer", Department: "Data Platform", DateJoined: now.AddDate(0, 0, -400), Location: "Bengaluru", Level: "senior", ManagerEmail: "director.de@example.com"},
		{Name: "Sneha Rao", Email: "sneha.rao@example.com", Role: "Data Engineer", Department: "Data Platform", DateJoined: now.AddDate(0, 0, -900), Location: "Pune", Level: "senior", ManagerEmail: "director.de@example.com"},
		{Name: "Karan Shah", Email: "karan.shah@example.com", Role: "Backend Engineer", Department: "App Eng", DateJoined: now.AddDate(0, 0, -7), Location: "Bengaluru", Level: "junior", ManagerEmail: "lead.be@example.com"},
	}
	for _, e := range rows {
		if _, err := s.Insert(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
