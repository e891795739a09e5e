package hanchu

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

func testToken(t *testing.T, ttl time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"exp": time.Now().Add(ttl).Unix(),
		"sub": "test",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func writeEnvelope(w http.ResponseWriter, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(env)
}

func jsonData(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func testCreds() Credentials {
	return Credentials{
		Username:       "user@example.com",
		Password:       "secret",
		InverterSerial: "HESI30TEST001",
		BatterySerial:  "HESB10TEST001",
	}
}

func TestAuthSessionSingleFlight(t *testing.T) {
	assert := assert.New(t)

	var loginCount atomic.Int32
	var release = make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == pathLogin {
			loginCount.Add(1)
			<-release
			writeEnvelope(w, envelope{Success: true, Code: 200, Data: jsonData(t, testToken(t, 72*time.Hour))})
			return
		}
		t.Errorf("unexpected request %s", r.URL.Path)
	}))
	defer server.Close()

	client := NewClientWithHTTP(testCreds(), server.URL, server.Client())

	var wg sync.WaitGroup
	results := make([]string, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token, err := client.Session().EnsureValid(context.Background())
			assert.NoError(err)
			results[i] = token
		}(i)
	}
	// let both callers reach the session before the login resolves
	time.Sleep(200 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(int32(1), loginCount.Load(), "concurrent callers share one login")
	assert.Equal(results[0], results[1])
}

func TestAuthSessionReusesFreshToken(t *testing.T) {
	assert := assert.New(t)

	var loginCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loginCount.Add(1)
		writeEnvelope(w, envelope{Success: true, Code: 200, Data: jsonData(t, testToken(t, 72*time.Hour))})
	}))
	defer server.Close()

	client := NewClientWithHTTP(testCreds(), server.URL, server.Client())

	for i := 0; i < 3; i++ {
		_, err := client.Session().EnsureValid(context.Background())
		assert.NoError(err)
	}
	assert.Equal(int32(1), loginCount.Load())
}

func TestAuthSessionBadCredentials(t *testing.T) {
	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, envelope{Success: false, Code: 500, Msg: "account or password error"})
	}))
	defer server.Close()

	client := NewClientWithHTTP(testCreds(), server.URL, server.Client())

	_, err := client.Session().EnsureValid(context.Background())
	var authErr *AuthError
	assert.ErrorAs(err, &authErr)
}

func TestFetchInverterReading(t *testing.T) {
	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case pathLogin:
			writeEnvelope(w, envelope{Success: true, Code: 200, Data: jsonData(t, testToken(t, 72*time.Hour))})
		case pathParallelPower:
			assert.NotEmpty(r.Header.Get("access-token"))
			assert.Equal("iess", r.Header.Get("appplat"))
			writeEnvelope(w, envelope{Success: true, Code: 200, Data: jsonData(t, map[string]any{
				"mainPower": inverterFixture(),
			})})
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClientWithHTTP(testCreds(), server.URL, server.Client())

	reading, err := client.FetchInverterReading(context.Background())
	if err != nil {
		t.Error(err)
		return
	}
	assert.Equal("HESI30TEST001", reading.SerialNumber)
	assert.Equal(1820.5, *reading.SolarPowerW)
}

func TestExpiredTokenRetriesOnce(t *testing.T) {
	assert := assert.New(t)

	var loginCount atomic.Int32
	var dataCount atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case pathLogin:
			loginCount.Add(1)
			writeEnvelope(w, envelope{Success: true, Code: 200, Data: jsonData(t, testToken(t, 72*time.Hour))})
		case pathParallelPower:
			// first data call is rejected as unauthenticated
			if dataCount.Add(1) == 1 {
				writeEnvelope(w, envelope{Success: false, Code: 401, Msg: "token expired"})
				return
			}
			writeEnvelope(w, envelope{Success: true, Code: 200, Data: jsonData(t, map[string]any{
				"mainPower": inverterFixture(),
			})})
		}
	}))
	defer server.Close()

	client := NewClientWithHTTP(testCreds(), server.URL, server.Client())

	reading, err := client.FetchInverterReading(context.Background())
	assert.NoError(err)
	assert.NotNil(reading)
	assert.Equal(int32(2), loginCount.Load(), "rejection invalidates and re-logins once")
	assert.Equal(int32(2), dataCount.Load())
}

func TestSetWorkModeRejected(t *testing.T) {
	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case pathLogin:
			writeEnvelope(w, envelope{Success: true, Code: 200, Data: jsonData(t, testToken(t, 72*time.Hour))})
		case pathSetWorkMode:
			writeEnvelope(w, envelope{Success: false, Code: 500, Msg: "device offline"})
		}
	}))
	defer server.Close()

	client := NewClientWithHTTP(testCreds(), server.URL, server.Client())

	err := client.SetWorkMode(context.Background(), WorkModeUserDefined)
	var rejected *RejectedByDeviceError
	assert.ErrorAs(err, &rejected)
	assert.Equal(500, rejected.Code)
}

func TestNetworkErrorOnServerFailure(t *testing.T) {
	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case pathLogin:
			writeEnvelope(w, envelope{Success: true, Code: 200, Data: jsonData(t, testToken(t, 72*time.Hour))})
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer server.Close()

	client := NewClientWithHTTP(testCreds(), server.URL, server.Client())

	_, err := client.FetchInverterReading(context.Background())
	var netErr *NetworkError
	assert.ErrorAs(err, &netErr)
}

func TestTokenExpiry(t *testing.T) {
	assert := assert.New(t)

	exp, err := tokenExpiry(testToken(t, 48*time.Hour))
	assert.NoError(err)
	assert.InDelta(time.Now().Add(48*time.Hour).Unix(), exp.Unix(), 5)

	_, err = tokenExpiry("not-a-token")
	assert.Error(err)
}
