package gcp

import "testing"

func TestPublicURLForms(t *testing.T) {
	cases := []struct {
		name string
		bs   *bucketStore
		want string
	}{
		{
			name: "gcs default",
			bs:   &bucketStore{storageMode: ObjectStorageModeGCS, bucket: "marks"},
			want: "https://storage.googleapis.com/marks/markbook-data/a.json",
		},
		{
			name: "cdn",
			bs:   &bucketStore{storageMode: ObjectStorageModeGCS, bucket: "marks", cdnDomain: "cdn.example.com"},
			want: "https://cdn.example.com/markbook-data/a.json",
		},
		{
			name: "public base",
			bs:   &bucketStore{storageMode: ObjectStorageModeGCS, bucket: "marks", publicBaseURL: "http://localhost:9000"},
			want: "http://localhost:9000/marks/markbook-data/a.json",
		},
		{
			name: "emulator",
			bs:   &bucketStore{storageMode: ObjectStorageModeGCSEmulator, bucket: "marks", emulatorHost: "http://fake-gcs:4443"},
			want: "http://fake-gcs:4443/storage/v1/b/marks/o/markbook-data%2Fa.json?alt=media",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.bs.publicURL("markbook-data/a.json")
			if got != tc.want {
				t.Fatalf("publicURL: want=%q got=%q", tc.want, got)
			}
			key, ok := tc.bs.keyFromLocator(got)
			if !ok || key != "markbook-data/a.json" {
				t.Fatalf("keyFromLocator(%q): want=%q got=%q ok=%v", got, "markbook-data/a.json", key, ok)
			}
			key, ok = tc.bs.keyFromLocator(got + "&download=1")
			if tc.bs.storageMode == ObjectStorageModeGCSEmulator && (!ok || key != "markbook-data/a.json") {
				t.Fatalf("keyFromLocator download form: got=%q ok=%v", key, ok)
			}
		})
	}
}

func TestKeyFromLocatorRejectsForeignURLs(t *testing.T) {
	bs := &bucketStore{storageMode: ObjectStorageModeGCS, bucket: "marks"}
	for _, loc := range []string{"", "https://evil.example.com/other/a.json", "https://storage.googleapis.com/other/a.json"} {
		if key, ok := bs.keyFromLocator(loc); ok {
			t.Fatalf("keyFromLocator(%q): want rejection got=%q", loc, key)
		}
	}
	if key, ok := bs.keyFromLocator("/markbook-data/b.json"); !ok || key != "markbook-data/b.json" {
		t.Fatalf("bare pathname: got=%q ok=%v", key, ok)
	}
}
