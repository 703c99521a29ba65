package store

import (
	"fmt"

	"mizan/internal/framework"
)

// InsertPillar stores one pillar.
func (s *Store) InsertPillar(p framework.Pillar) error {
	if p.ID == "" {
		return fmt.Errorf("pillar with empty id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO pillars (id, name, name_ar)
		VALUES (?, ?, ?)`, p.ID, p.Name, p.NameAr)
	if err != nil {
		return fmt.Errorf("failed to insert pillar %s: %w", p.ID, err)
	}
	return nil
}

// InsertCoreValue stores one core value; its pillar must already exist.
func (s *Store) InsertCoreValue(cv framework.CoreValue) error {
	if cv.ID == "" {
		return fmt.Errorf("core value with empty id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var pillarID string
	if err := s.db.QueryRow("SELECT id FROM pillars WHERE id = ?", cv.PillarID).Scan(&pillarID); err != nil {
		return fmt.Errorf("core value %s: pillar %s does not exist", cv.ID, cv.PillarID)
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO core_values (id, pillar_id, name, name_ar)
		VALUES (?, ?, ?, ?)`, cv.ID, cv.PillarID, cv.Name, cv.NameAr)
	if err != nil {
		return fmt.Errorf("failed to insert core value %s: %w", cv.ID, err)
	}
	return nil
}

// InsertSubValue stores one sub-value; its core value must already exist.
func (s *Store) InsertSubValue(sv framework.SubValue) error {
	if sv.ID == "" {
		return fmt.Errorf("sub value with empty id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var coreValueID string
	if err := s.db.QueryRow("SELECT id FROM core_values WHERE id = ?", sv.CoreValueID).Scan(&coreValueID); err != nil {
		return fmt.Errorf("sub value %s: core value %s does not exist", sv.ID, sv.CoreValueID)
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO sub_values (id, core_value_id, name, name_ar)
		VALUES (?, ?, ?, ?)`, sv.ID, sv.CoreValueID, sv.Name, sv.NameAr)
	if err != nil {
		return fmt.Errorf("failed to insert sub value %s: %w", sv.ID, err)
	}
	return nil
}

// LoadFrameworkIndex reads all framework entities and builds the in-memory
// resolver used at query time.
func (s *Store) LoadFrameworkIndex() (*framework.Index, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pillars []framework.Pillar
	rows, err := s.db.Query("SELECT id, name, name_ar FROM pillars ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to load pillars: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p framework.Pillar
		if err := rows.Scan(&p.ID, &p.Name, &p.NameAr); err != nil {
			return nil, fmt.Errorf("failed to scan pillar: %w", err)
		}
		pillars = append(pillars, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var coreValues []framework.CoreValue
	cvRows, err := s.db.Query("SELECT id, pillar_id, name, name_ar FROM core_values ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to load core values: %w", err)
	}
	defer cvRows.Close()
	for cvRows.Next() {
		var cv framework.CoreValue
		if err := cvRows.Scan(&cv.ID, &cv.PillarID, &cv.Name, &cv.NameAr); err != nil {
			return nil, fmt.Errorf("failed to scan core value: %w", err)
		}
		coreValues = append(coreValues, cv)
	}
	if err := cvRows.Err(); err != nil {
		return nil, err
	}

	var subValues []framework.SubValue
	svRows, err := s.db.Query("SELECT id, core_value_id, name, name_ar FROM sub_values ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to load sub values: %w", err)
	}
	defer svRows.Close()
	for svRows.Next() {
		var sv framework.SubValue
		if err := svRows.Scan(&sv.ID, &sv.CoreValueID, &sv.Name, &sv.NameAr); err != nil {
			return nil, fmt.Errorf("failed to scan sub value: %w", err)
		}
		subValues = append(subValues, sv)
	}
	if err := svRows.Err(); err != nil {
		return nil, err
	}

	return framework.NewIndex(pillars, coreValues, subValues), nil
}
