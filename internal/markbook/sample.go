package markbook

// NewSampleStore returns the roster a fresh markbook opens with.
func NewSampleStore() *Store {
	s := NewStore()
	s.AddStudent("Emma Johnson", "Dragons", "Active")
	s.AddStudent("Oliver Smith", "Eagles", "Active")
	return s
}
