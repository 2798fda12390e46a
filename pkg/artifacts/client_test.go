package artifacts

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/issgate/pkg/iss"
)

type fakeTokens struct {
	token     string
	refreshed atomic.Int32
}

func (f *fakeTokens) BearerToken(ctx context.Context) (string, error) {
	return f.token, nil
}

func (f *fakeTokens) RefreshBearerToken(ctx context.Context) (string, error) {
	f.refreshed.Add(1)
	f.token = "tok-fresh"
	return f.token, nil
}

type fakeJobs struct {
	jobType iss.JobType
	tenant  string
	err     error
}

func (f fakeJobs) GetJob(ctx context.Context, jobID string) (*iss.JobDetail, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &iss.JobDetail{JobSummary: iss.JobSummary{ID: jobID, Name: "job", Type: f.jobType, TenantID: f.tenant}}, nil
}

func newTestArtifacts(t *testing.T, baseURL string, tokens TokenSource, jobs JobTypeLookup) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: baseURL}, tokens, jobs, nil)
	require.NoError(t, err)
	return c
}

func zipArchive(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestListFiles_ArtifactPathByJobType(t *testing.T) {
	tests := []struct {
		jobType  iss.JobType
		wantPath string
	}{
		{iss.JobTypeISIM, "/fs/files/job-1/isim/artifacts/out"},
		{iss.JobTypeNovaCoho, "/fs/files/job-1/coho/artifacts/out"},
		{iss.JobTypeIWPS, "/fs/files/job-1/iwps/artifacts/out"},
		{iss.JobTypeCustom, "/fs/files/job-1/iwps/artifacts/out"},
	}

	for _, tt := range tests {
		t.Run(string(tt.jobType), func(t *testing.T) {
			var gotPath string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				_, _ = w.Write([]byte(`{"files":["a.log","b.json"]}`))
			}))
			defer srv.Close()

			client := newTestArtifacts(t, srv.URL, &fakeTokens{token: "tok"}, fakeJobs{jobType: tt.jobType})
			files, err := client.ListFiles(context.Background(), "", "job-1", "")
			require.NoError(t, err)

			assert.Equal(t, tt.wantPath, gotPath)
			assert.Equal(t, []string{"a.log", "b.json"}, files)
		})
	}
}

func TestListFiles_BundledUsesLogsPathAndChildren(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"children":[{"name":"simics.zip"},{"name":"serialconsole.zip"}]}`))
	}))
	defer srv.Close()

	client := newTestArtifacts(t, srv.URL, &fakeTokens{token: "tok"}, fakeJobs{jobType: iss.JobTypeWorkloadJob})
	files, err := client.ListFiles(context.Background(), "", "job-1", "")
	require.NoError(t, err)

	assert.Equal(t, "/fs/files/job-1/logs", gotPath)
	assert.Equal(t, []string{"simics.zip", "serialconsole.zip"}, files)
}

func TestListFiles_JobLookupFailureDefaultsToIWPS(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"files":[]}`))
	}))
	defer srv.Close()

	client := newTestArtifacts(t, srv.URL, &fakeTokens{token: "tok"}, fakeJobs{err: assert.AnError})
	_, err := client.ListFiles(context.Background(), "", "job-1", "")
	require.NoError(t, err)

	assert.Equal(t, "/fs/files/job-1/iwps/artifacts/out", gotPath)
}

func TestListFilesMatching_GlobFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"files":["run.log","trace.log","summary.json"]}`))
	}))
	defer srv.Close()

	client := newTestArtifacts(t, srv.URL, &fakeTokens{token: "tok"}, fakeJobs{jobType: iss.JobTypeIWPS})
	files, err := client.ListFilesMatching(context.Background(), "", "job-1", "", "*.log")
	require.NoError(t, err)

	assert.Equal(t, []string{"run.log", "trace.log"}, files)
}

func TestListFiles_TenantURLRouting(t *testing.T) {
	var hits atomic.Int32
	tenantSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"files":[]}`))
	}))
	defer tenantSrv.Close()

	client, err := New(Config{
		BaseURL:    "http://default.invalid",
		TenantURLs: map[string]string{"tenant-a": tenantSrv.URL},
	}, &fakeTokens{token: "tok"}, fakeJobs{jobType: iss.JobTypeIWPS}, nil)
	require.NoError(t, err)

	_, err = client.ListFiles(context.Background(), "tenant-a", "job-1", "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestListFiles_EmptyTenantFallsBackToJobTenant(t *testing.T) {
	var hits atomic.Int32
	tenantSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"files":[]}`))
	}))
	defer tenantSrv.Close()

	client, err := New(Config{
		BaseURL:    "http://default.invalid",
		TenantURLs: map[string]string{"tenant-b": tenantSrv.URL},
	}, &fakeTokens{token: "tok"}, fakeJobs{jobType: iss.JobTypeIWPS, tenant: "tenant-b"}, nil)
	require.NoError(t, err)

	_, err = client.ListFiles(context.Background(), "", "job-1", "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestDownloadFile_EmptyTenantFallsBackToJobTenant(t *testing.T) {
	tenantSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("tenant bytes"))
	}))
	defer tenantSrv.Close()

	client, err := New(Config{
		BaseURL:    "http://default.invalid",
		TenantURLs: map[string]string{"tenant-b": tenantSrv.URL},
	}, &fakeTokens{token: "tok"}, fakeJobs{jobType: iss.JobTypeISIM, tenant: "tenant-b"}, nil)
	require.NoError(t, err)

	got, err := client.DownloadFile(context.Background(), "", "job-1", "results/run.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("tenant bytes"), got)
}

func TestGet_RefreshesTokenOn401(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer tok-fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"files":["a.log"]}`))
	}))
	defer srv.Close()

	tokens := &fakeTokens{token: "tok-stale"}
	client := newTestArtifacts(t, srv.URL, tokens, fakeJobs{jobType: iss.JobTypeIWPS})

	files, err := client.ListFiles(context.Background(), "", "job-1", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"a.log"}, files)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int32(1), tokens.refreshed.Load())
}

func TestGet_SecondUnauthorizedSurfacesAuthError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tokens := &fakeTokens{token: "tok-stale"}
	client := newTestArtifacts(t, srv.URL, tokens, fakeJobs{jobType: iss.JobTypeIWPS})

	_, err := client.ListFiles(context.Background(), "", "job-1", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGet_StatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, ErrNotFound},
		{http.StatusForbidden, ErrAccessDenied},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		client := newTestArtifacts(t, srv.URL, &fakeTokens{token: "tok"}, fakeJobs{jobType: iss.JobTypeIWPS})
		_, err := client.ListFiles(context.Background(), "", "job-1", "")
		require.Error(t, err)
		assert.ErrorIs(t, err, tt.want)

		srv.Close()
	}
}

func TestDownloadFile_PlainArtifact(t *testing.T) {
	content := []byte("exit_code=0\nelapsed=12.5s\n")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fs/files/job-1/isim/artifacts/out/results/run.txt", r.URL.Path)
		_, _ = w.Write(content)
	}))
	defer srv.Close()

	client := newTestArtifacts(t, srv.URL, &fakeTokens{token: "tok"}, fakeJobs{jobType: iss.JobTypeISIM})
	got, err := client.DownloadFile(context.Background(), "", "job-1", "results/run.txt")
	require.NoError(t, err)

	assert.Equal(t, content, got)
}

func TestDownloadFile_BundledZipExtraction(t *testing.T) {
	archive := zipArchive(t, map[string]string{
		"logs/simics/console.log": "simics console output",
		"logs/simics/cpu.log":     "cpu trace",
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fs/files/job-1/logs/all/simics", r.URL.Path)
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	client := newTestArtifacts(t, srv.URL, &fakeTokens{token: "tok"}, fakeJobs{jobType: iss.JobTypeWorkloadJob})
	got, err := client.DownloadFile(context.Background(), "", "job-1", "simics/console.log")
	require.NoError(t, err)

	assert.Equal(t, []byte("simics console output"), got)
}

func TestDownloadFile_BundledSerialConsoleGroup(t *testing.T) {
	archive := zipArchive(t, map[string]string{
		"logs/serialconsole/uart0.log": "tty bytes",
	})

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	client := newTestArtifacts(t, srv.URL, &fakeTokens{token: "tok"}, fakeJobs{jobType: iss.JobTypeWorkloadJobROI})
	got, err := client.DownloadFile(context.Background(), "", "job-1", "serialconsole/uart0.log")
	require.NoError(t, err)

	assert.Equal(t, "/fs/files/job-1/logs/all/serialconsole", gotPath)
	assert.Equal(t, []byte("tty bytes"), got)
}

func TestDownloadFile_BundledMissingEntry(t *testing.T) {
	archive := zipArchive(t, map[string]string{
		"logs/simics/console.log": "data",
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	client := newTestArtifacts(t, srv.URL, &fakeTokens{token: "tok"}, fakeJobs{jobType: iss.JobTypeWorkloadJob})
	_, err := client.DownloadFile(context.Background(), "", "job-1", "simics/missing.log")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestDownloadFile_BundledUnknownGroup(t *testing.T) {
	client := newTestArtifacts(t, "http://unused.invalid", &fakeTokens{token: "tok"}, fakeJobs{jobType: iss.JobTypeWorkloadJob})

	_, err := client.DownloadFile(context.Background(), "", "job-1", "whatever/file.log")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestDownloadFile_CorruptArchive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("this is not a zip"))
	}))
	defer srv.Close()

	client := newTestArtifacts(t, srv.URL, &fakeTokens{token: "tok"}, fakeJobs{jobType: iss.JobTypeWorkloadJob})
	_, err := client.DownloadFile(context.Background(), "", "job-1", "simics/console.log")
	require.Error(t, err)
	assert.True(t, IsBadArchive(err))
}

func TestExtractZipEntry_ExactBytes(t *testing.T) {
	payload := bytes.Repeat([]byte{0x00, 0xff, 0x7f}, 100)
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("out/data.bin")
	require.NoError(t, err)
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	got, err := extractZipEntry(buf.Bytes(), "data.bin")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}
