package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	badger "github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/require"
	g "github.com/univision/camera-relay/globals"
	"github.com/univision/camera-relay/models"
)

func testRelayConf() *g.RelaySubconfig {
	return &g.RelaySubconfig{
		FFmpeg:         "/usr/bin/ffmpeg",
		FFprobe:        "/usr/bin/ffprobe",
		PublishHost:    "127.0.0.1",
		PublishPort:    8554,
		StartTimeout:   "10s",
		CloseAfter:     "30s",
		ProbeTimeoutMs: 1000,
	}
}

func newTestStorage(t *testing.T) *Storage {
	opts := badger.DefaultOptions(t.TempDir()).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStorage(db)
}

// fakeControl mimics the path config endpoints of the streaming server
type fakeControl struct {
	mu          sync.Mutex
	paths       map[string]*models.PathConfig
	calls       []string
	addStatus   []int // forced statuses for the next add calls
	delStatus   []int // forced statuses for the next delete calls
	delay       time.Duration
	inFlight    map[string]int
	maxInFlight int
	listCalls   int
}

func newFakeControl() *fakeControl {
	return &fakeControl{
		paths:    make(map[string]*models.PathConfig),
		inFlight: make(map[string]int),
	}
}

func (fc *fakeControl) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p := strings.TrimPrefix(req.URL.Path, "/v3")
	name := p[strings.LastIndex(p, "/")+1:]

	fc.enter(name)
	defer fc.leave(name)
	if fc.delay > 0 {
		time.Sleep(fc.delay)
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()

	switch {
	case req.Method == http.MethodPost && strings.HasPrefix(p, "/config/paths/add/"):
		fc.calls = append(fc.calls, "add "+name)
		if len(fc.addStatus) > 0 {
			status := fc.addStatus[0]
			fc.addStatus = fc.addStatus[1:]
			if status != http.StatusOK {
				writeError(w, status, "forced")
				return
			}
		}
		if _, ok := fc.paths[name]; ok {
			writeError(w, http.StatusConflict, "path already exists")
			return
		}
		var pc models.PathConfig
		if err := json.NewDecoder(req.Body).Decode(&pc); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		fc.paths[name] = &pc
		w.WriteHeader(http.StatusOK)
	case req.Method == http.MethodDelete && strings.HasPrefix(p, "/config/paths/delete/"):
		fc.calls = append(fc.calls, "delete "+name)
		if len(fc.delStatus) > 0 {
			status := fc.delStatus[0]
			fc.delStatus = fc.delStatus[1:]
			if status != http.StatusOK {
				writeError(w, status, "forced")
				return
			}
		}
		if _, ok := fc.paths[name]; !ok {
			writeError(w, http.StatusNotFound, "path not found")
			return
		}
		delete(fc.paths, name)
		w.WriteHeader(http.StatusOK)
	case req.Method == http.MethodGet && p == "/paths/list":
		names := make([]string, 0, len(fc.paths))
		for n := range fc.paths {
			names = append(names, n)
		}
		sort.Strings(names)
		perPage, err := strconv.Atoi(req.URL.Query().Get("itemsPerPage"))
		if err != nil || perPage <= 0 {
			perPage = 100
		}
		page, _ := strconv.Atoi(req.URL.Query().Get("page"))
		fc.listCalls++

		list := models.PathList{ItemCount: len(names), PageCount: (len(names) + perPage - 1) / perPage, Items: []*models.PathItem{}}
		for i := page * perPage; i < len(names) && i < (page+1)*perPage; i++ {
			list.Items = append(list.Items, &models.PathItem{Name: names[i], ConfName: names[i]})
		}
		json.NewEncoder(w).Encode(list)
	case req.Method == http.MethodGet && strings.HasPrefix(p, "/paths/get/"):
		if _, ok := fc.paths[name]; !ok {
			writeError(w, http.StatusNotFound, "path not found")
			return
		}
		json.NewEncoder(w).Encode(models.PathItem{Name: name, ConfName: name})
	default:
		writeError(w, http.StatusNotFound, "unknown endpoint")
	}
}

func (fc *fakeControl) enter(name string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.inFlight[name]++
	if fc.inFlight[name] > fc.maxInFlight {
		fc.maxInFlight = fc.inFlight[name]
	}
}

func (fc *fakeControl) leave(name string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.inFlight[name]--
}

func (fc *fakeControl) callLog() []string {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return append([]string(nil), fc.calls...)
}

func (fc *fakeControl) reset() {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.calls = nil
}

func (fc *fakeControl) pathCount() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return len(fc.paths)
}

func (fc *fakeControl) listRequests() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.listCalls
}

func (fc *fakeControl) addPath(name string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.paths[name] = &models.PathConfig{Source: models.SourcePublisher}
}

func (fc *fakeControl) maxConcurrent() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.maxInFlight
}

func (fc *fakeControl) path(name string) *models.PathConfig {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.paths[name]
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []*models.SyncEvent
}

func (rn *recordingNotifier) Notify(event *models.SyncEvent) {
	rn.mu.Lock()
	defer rn.mu.Unlock()
	rn.events = append(rn.events, event)
}

func (rn *recordingNotifier) last() *models.SyncEvent {
	rn.mu.Lock()
	defer rn.mu.Unlock()
	if len(rn.events) == 0 {
		return nil
	}
	return rn.events[len(rn.events)-1]
}

func newTestControl(t *testing.T, handler http.Handler) *ControlClient {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewControlClient(&g.MediaMTXSubconfig{URL: server.URL, APIPrefix: "/v3", TimeoutMs: 2000, HealthMs: 500})
}

func newTestReconciler(t *testing.T, fc *fakeControl) (*Reconciler, *recordingNotifier) {
	notifier := &recordingNotifier{}
	return NewReconciler(NewCommandBuilder(testRelayConf()), newTestControl(t, fc), notifier), notifier
}
