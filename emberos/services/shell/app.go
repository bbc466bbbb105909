package shell

// App is a foreground sub-application. At most one app is active per
// session; starting another stops the current one first. While active,
// an app's command subset joins the global registry.
type App interface {
	Name() string
	Desc() string
	// Commands lists the app's extra commands, live only while active.
	Commands() []Command
	// Start enters the app. On error the session stays app-less.
	Start(s *Session) error
	// Stop leaves the app. It must be safe to call exactly once per Start.
	Stop(s *Session)
}

// Install adds an app to the session's catalog. Like command
// registration this happens once at construction; duplicates panic.
func (s *Session) Install(app App) {
	for _, a := range s.apps {
		if a.Name() == app.Name() {
			panic("shell: duplicate app " + app.Name())
		}
	}
	s.apps = append(s.apps, app)
}

// Apps lists the installed apps in installation order.
func (s *Session) Apps() []App { return s.apps }

// ActiveApp returns the running app, or nil.
func (s *Session) ActiveApp() App { return s.app }

func (s *Session) startApp(app App) error {
	s.stopApp()
	if err := app.Start(s); err != nil {
		return err
	}
	reg := newRegistry()
	for _, cmd := range app.Commands() {
		reg.add(cmd)
	}
	s.app = app
	s.appReg = reg
	return nil
}

// stopApp is idempotent: stopping with no active app does nothing.
func (s *Session) stopApp() {
	if s.app == nil {
		return
	}
	app := s.app
	s.app = nil
	s.appReg = nil
	app.Stop(s)
}
