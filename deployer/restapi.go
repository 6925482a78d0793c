package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"code.linksmart.eu/dt/page-deployer/deployer/model"
	"github.com/cskr/pubsub"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/justinas/alice"
	"github.com/rs/cors"
	"github.com/urfave/negroni"
)

const (
	// query parameter key/values
	_page          = "page"
	_perPage       = "perPage"
	_task          = "task"
	_topics        = "topics"
	defaultPage    = 1
	defaultPerPage = 100
)

type restAPI struct {
	secret       string
	orchestrator *orchestrator
	registry     *registry
	events       *pubsub.PubSub
	router       *mux.Router
}

type list struct {
	Total   int64       `json:"total"`
	Items   interface{} `json:"items"` // array of anything
	Page    int         `json:"page"`
	PerPage int         `json:"perPage"`
}

func startRESTAPI(bindAddr string, api *restAPI) {

	api.setupRouter()

	chain := alice.New(
		recoveryMiddleware,
		loggingMiddleware,
		cors.AllowAll().Handler,
	)

	log.Println("RESTAPI: Binding to", bindAddr)
	err := http.ListenAndServe(bindAddr, chain.Then(api.router))
	if err != nil {
		log.Fatal(err)
	}
}

func (a *restAPI) setupRouter() {
	r := mux.NewRouter()

	r.HandleFunc("/", a.index).Methods(http.MethodGet)
	// tasks
	r.HandleFunc("/api-endpoint", a.submitTask).Methods(http.MethodPost)
	// deployment runs
	r.HandleFunc("/deployments", a.getDeployments).Methods(http.MethodGet)
	r.HandleFunc("/deployments/{id}", a.getDeployment).Methods(http.MethodGet)
	// health
	r.HandleFunc("/health", a.getHealth).Methods(http.MethodGet)

	// websocket
	r.PathPrefix("/events").HandlerFunc(a.websocket)

	a.router = r
}

func (a *restAPI) index(w http.ResponseWriter, r *http.Request) {
	b, err := json.Marshal(map[string]string{
		"status":  "ok",
		"message": "API is running. Send POST requests to /api-endpoint",
	})
	if err != nil {
		HTTPResponseError(w, http.StatusInternalServerError, err)
		return
	}
	HTTPResponse(w, http.StatusOK, b)
}

func (a *restAPI) submitTask(w http.ResponseWriter, r *http.Request) {

	decoder := json.NewDecoder(r.Body)
	defer r.Body.Close()

	var task model.TaskRequest
	err := decoder.Decode(&task)
	if err != nil {
		HTTPResponseError(w, http.StatusBadRequest, "error parsing body: "+err.Error())
		return
	}

	// reject before any processing starts
	if task.Secret != a.secret {
		HTTPResponseError(w, http.StatusUnauthorized, "Unauthorized: Invalid secret")
		return
	}

	err = task.Validate()
	if err != nil {
		HTTPResponseError(w, http.StatusBadRequest, "Invalid task: ", err)
		return
	}
	log.Printf("RESTAPI: Received task %s (round %d)", task.Task, task.Round)

	// acknowledge now, process detached
	record := a.registry.add(task.Task, task.Round)
	go a.orchestrator.process(task, record)

	b, err := json.Marshal(map[string]string{
		"message":    "Request received and is being processed.",
		"deployment": record.ID,
	})
	if err != nil {
		HTTPResponseError(w, http.StatusInternalServerError, err)
		return
	}
	HTTPResponse(w, http.StatusAccepted, b)
}

func (a *restAPI) getDeployment(w http.ResponseWriter, r *http.Request) {

	id := mux.Vars(r)["id"]

	d := a.registry.get(id)
	if d == nil {
		HTTPResponseError(w, http.StatusNotFound, id+" is not found!")
		return
	}

	b, err := json.Marshal(d)
	if err != nil {
		HTTPResponseError(w, http.StatusInternalServerError, err)
		return
	}
	HTTPResponse(w, http.StatusOK, b)
}

func (a *restAPI) getDeployments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, perPage, err := parsePagingAttributes(query)
	if err != nil {
		HTTPResponseError(w, http.StatusBadRequest, err.Error())
		return
	}

	deployments, total := a.registry.list(query.Get(_task), page, perPage)

	b, err := json.Marshal(&list{total, deployments, page, perPage})
	if err != nil {
		HTTPResponseError(w, http.StatusInternalServerError, err)
		return
	}
	HTTPResponse(w, http.StatusOK, b)
}

func (a *restAPI) getHealth(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK!"))
}

func (a *restAPI) websocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true }, // allow all origins
	}
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("websocket: upgrade error:", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer c.Close()

	query := r.URL.Query()
	topics := []string{EventDeploymentQueued, EventDeploymentUpdated}
	if topicsQuery := query.Get(_topics); topicsQuery != "" {
		topics = strings.Split(topicsQuery, ",")
	}
	task := query.Get(_task)

	events := a.events.Sub(topics...)
	defer a.events.Unsub(events) // publisher should only use the TryPub method to avoid panics

	for raw := range events {
		if task != "" {
			if e, ok := raw.(event); ok {
				if d, ok := e.Payload.(deployment); ok && d.Task != task {
					continue
				}
			}
		}
		b, _ := json.Marshal(raw)
		err = c.WriteMessage(websocket.TextMessage, b)
		if err != nil {
			log.Println("websocket: write error:", err)
			break
		}
	}
}

func parsePagingAttributes(query url.Values) (page int, perPage int, err error) {
	page, perPage = defaultPage, defaultPerPage
	if query.Get(_page) != "" {
		page, err = strconv.Atoi(query.Get(_page))
		if err != nil {
			return 0, 0, fmt.Errorf("error parsing %s query parameter: %s", _page, err)
		}
		if page < 1 {
			return 0, 0, fmt.Errorf("%s query parameter must be positive", _page)
		}
	}
	if query.Get(_perPage) != "" {
		perPage, err = strconv.Atoi(query.Get(_perPage))
		if err != nil {
			return 0, 0, fmt.Errorf("error parsing %s query parameter: %s", _perPage, err)
		}
		if perPage < 1 {
			return 0, 0, fmt.Errorf("%s query parameter must be positive", _perPage)
		}
	}
	return page, perPage, nil
}

// HTTPResponseError serializes and writes an error response
//	If no message is provided, the status text will be set as the message
func HTTPResponseError(w http.ResponseWriter, code int, message ...interface{}) {
	if len(message) == 0 {
		message = make([]interface{}, 1)
		message[0] = http.StatusText(code)
	}
	log.Println("Request error:", message)
	body, _ := json.Marshal(&map[string]string{
		"error": fmt.Sprint(message...),
	})
	HTTPResponse(w, code, body)
}

// HTTPResponse writes a response
func HTTPResponse(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, err := w.Write(body)
	if err != nil {
		log.Printf("HTTPResponse: error writing reponse: %s", err)
	}
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		nw := negroni.NewResponseWriter(w)
		next.ServeHTTP(nw, r)
		log.Printf("\"%s %s %s\" %d %d %v\n", r.Method, r.URL.String(), r.Proto, nw.Status(), nw.Size(), time.Since(start))
	})
}

func recoveryMiddleware(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("PANIC: %v\n%s", r, debug.Stack())
				HTTPResponseError(w, 500, r)
			}
		}()
		next.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}
