package partition

// Info describes the open file of one group
type Info struct {
	Key      string
	Seq      int
	Size     int64 // bytes in the file, including what was there before it was opened
	Appended int   // records appended since it was opened
}

// Strategy decides, before each append, whether the open file must be closed first
type Strategy interface {
	ShouldRotate(info Info) bool
}

// SizeStrategy rotates once a file has grown past MaxBytes
// A file can therefore overshoot by the record that crossed the limit plus the closing tag
type SizeStrategy struct {
	MaxBytes int64
}

// ShouldRotate implements Strategy
func (s SizeStrategy) ShouldRotate(info Info) bool { return info.Size > s.MaxBytes }
