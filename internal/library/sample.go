// ABOUTME: Fallback dataset written into an empty store on first run
// ABOUTME: Fixed ids let a seeded library be recognised and journaled edits replay against it

package library

import (
	"time"

	"github.com/2389/refforge/internal/store"
)

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

// SampleData returns a fresh copy of the seed dataset.
func SampleData() store.AppData {
	return store.AppData{
		Projects: []store.Project{
			{ID: "proj-1", Name: "AI in Healthcare", Color: "hsl(210, 80%, 60%)"},
			{ID: "proj-2", Name: "Quantum Computing", Color: "hsl(280, 80%, 60%)"},
			{ID: "proj-3", Name: "General Reading", Color: "hsl(30, 80%, 60%)"},
		},
		References: []store.Reference{
			{
				ID:        "ref-1",
				Title:     "Deep Learning for Health Informatics",
				Authors:   []string{"John Doe", "Jane Smith"},
				Year:      2021,
				Journal:   "Journal of Medical Internet Research",
				DOI:       "10.2196/18429",
				Abstract:  "This paper provides a comprehensive overview of deep learning techniques applied to various health informatics challenges, including electronic health records, medical imaging, and genomics.",
				Tags:      []string{"AI", "Deep Learning", "Healthcare"},
				Priority:  5,
				ProjectID: "proj-1",
				CreatedAt: mustTime("2023-01-15T09:30:00Z"),
				Status:    store.StatusNotFinished,
			},
			{
				ID:        "ref-2",
				Title:     "A Quantum-Inspired Classical Algorithm for Recommendation Systems",
				Authors:   []string{"Alice Johnson", "Bob Williams"},
				Year:      2022,
				Journal:   "Nature Quantum Information",
				DOI:       "10.1038/s41534-022-00522-3",
				Abstract:  "We introduce a novel classical algorithm inspired by quantum mechanics for collaborative filtering, showing significant improvements over existing recommendation system models.",
				Tags:      []string{"Quantum", "Algorithm", "Machine Learning"},
				Priority:  4,
				ProjectID: "proj-2",
				CreatedAt: mustTime("2023-02-20T14:00:00Z"),
				Status:    store.StatusNotFinished,
			},
			{
				ID:        "ref-3",
				Title:     "The Ethical Landscape of Generative AI",
				Authors:   []string{"Carol White"},
				Year:      2023,
				Journal:   "AI and Ethics",
				DOI:       "10.1007/s43681-023-00253-1",
				Abstract:  "This article explores the ethical considerations and societal impacts of large-scale generative artificial intelligence models, proposing a framework for responsible development.",
				Tags:      []string{"AI", "Ethics", "Generative AI"},
				Priority:  3,
				ProjectID: "proj-3",
				CreatedAt: mustTime("2023-03-10T11:45:00Z"),
				Status:    store.StatusNotFinished,
			},
			{
				ID:        "ref-4",
				Title:     "Predictive Modeling for Patient Outcomes using EHR Data",
				Authors:   []string{"David Green", "Emily Brown"},
				Year:      2020,
				Journal:   "JAMIA",
				DOI:       "10.1093/jamia/ocaa028",
				Abstract:  "This study develops and validates a predictive model for patient mortality using structured electronic health record data. The model achieves high accuracy and interpretability.",
				Tags:      []string{"Healthcare", "Predictive Modeling", "EHR"},
				Priority:  5,
				ProjectID: "proj-1",
				CreatedAt: mustTime("2023-04-05T16:20:00Z"),
				Status:    store.StatusNotFinished,
			},
			{
				ID:        "ref-5",
				Title:     "Shor's Algorithm and its Implications for Cryptography",
				Authors:   []string{"Peter Shor"},
				Year:      1994,
				Journal:   "Proceedings of the 35th Annual Symposium on Foundations of Computer Science",
				DOI:       "10.1109/SFCS.1994.365700",
				Abstract:  "A landmark paper describing a quantum algorithm for integer factorization, which has profound implications for the security of classical public-key cryptography systems.",
				Tags:      []string{"Quantum", "Cryptography", "Algorithm"},
				Priority:  2,
				ProjectID: "proj-2",
				CreatedAt: mustTime("2023-05-01T10:10:00Z"),
				Status:    store.StatusNotFinished,
			},
		},
	}
}
