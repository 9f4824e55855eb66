package landmark

import "context"

// FakeExtractor returns a scripted result, recording the transcripts
// it was asked about.
type FakeExtractor struct {
	Landmarks []Landmark
	Err       error
	Calls     []string
}

func (f *FakeExtractor) Extract(_ context.Context, transcript string) ([]Landmark, error) {
	f.Calls = append(f.Calls, transcript)
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Landmarks, nil
}
