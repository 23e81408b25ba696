package lua

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/clipai/internal/logging"
	"github.com/dshills/clipai/internal/plugin"
	"github.com/dshills/clipai/internal/plugin/loader"
)

// Ext is the extension of Lua plugin modules.
const Ext = ".lua"

// registration is one clipai.register call.
type registration struct {
	desc     plugin.Descriptor
	feature  *plugin.FeatureSpec
	defaults map[string]any

	processText *lua.LFunction
	refresh     *lua.LFunction
	init        *lua.LFunction
	shutdown    *lua.LFunction
}

// Opener opens ".lua" modules.
type Opener struct {
	logger *logging.Logger
}

// NewOpener creates an opener. Script output from clipai.log outside a
// callback goes to logger.
func NewOpener(logger *logging.Logger) *Opener {
	if logger == nil {
		logger = logging.Default()
	}
	return &Opener{logger: logger.WithComponent("lua")}
}

// Open runs the script and returns one factory per registration. The
// module's Close releases the shared state.
func (o *Opener) Open(ctx context.Context, path string) (*loader.Module, error) {
	s := NewState()

	var regs []*registration
	s.L.PreloadModule(ModuleName, func(L *lua.LState) int {
		L.Push(o.hostModule(L, s, path, &regs))
		return 1
	})

	if err := s.DoFile(ctx, path); err != nil {
		_ = s.Close()
		return nil, err
	}
	if len(regs) == 0 {
		_ = s.Close()
		return nil, ErrNoRegistrations
	}

	factories := make([]loader.Factory, 0, len(regs))
	for _, reg := range regs {
		factories = append(factories, loader.Factory{
			Name: reg.desc.ID,
			New: func() (plugin.Plugin, error) {
				return newScriptPlugin(s, reg), nil
			},
		})
	}
	return &loader.Module{Path: path, Factories: factories, Close: s.Close}, nil
}

// hostModule builds the clipai table.
func (o *Opener) hostModule(L *lua.LState, s *State, path string, regs *[]*registration) *lua.LTable {
	mod := L.NewTable()
	L.SetFuncs(mod, map[string]lua.LGFunction{
		"register": func(L *lua.LState) int {
			reg, err := parseRegistration(L.CheckTable(1))
			if err != nil {
				L.RaiseError("clipai.register: %s", err.Error())
				return 0
			}
			*regs = append(*regs, reg)
			return 0
		},

		"log": func(L *lua.LState) int {
			level, _ := plugin.ParseLogLevel(L.CheckString(1))
			msg := L.CheckString(2)
			if p := s.currentCaller(); p != nil {
				p.log(level, msg)
				return 0
			}
			o.logger.WithField("module", path).Info("%s: %s", level, msg)
			return 0
		},

		"notify": func(L *lua.LState) int {
			p := mustCaller(L, s)
			typ, _ := plugin.ParseNotificationType(L.OptString(3, "information"))
			p.notify(L.CheckString(1), L.CheckString(2), typ)
			return 0
		},

		"setting": func(L *lua.LState) int {
			p := mustCaller(L, s)
			def := toGo(L.Get(2))
			L.Push(toLua(L, p.setting(L.CheckString(1), def)))
			return 1
		},

		"set_setting": func(L *lua.LState) int {
			p := mustCaller(L, s)
			if err := p.setSetting(L.CheckString(1), toGo(L.Get(2))); err != nil {
				L.RaiseError("%s", err.Error())
			}
			return 0
		},

		"data_path": func(L *lua.LState) int {
			p := mustCaller(L, s)
			dir, err := p.dataPath()
			if err != nil {
				L.RaiseError("%s", err.Error())
				return 0
			}
			L.Push(lua.LString(dir))
			return 1
		},
	})
	return mod
}

func mustCaller(L *lua.LState, s *State) *scriptPlugin {
	p := s.currentCaller()
	if p == nil {
		L.RaiseError("%s", ErrNoCallback.Error())
	}
	return p
}

// parseRegistration validates a clipai.register table.
func parseRegistration(t *lua.LTable) (*registration, error) {
	reg := &registration{
		desc: plugin.Descriptor{
			ID:          tableString(t, "id"),
			Name:        tableString(t, "name"),
			Author:      tableString(t, "author"),
			Description: tableString(t, "description"),
		},
		processText: tableFunc(t, "process_text"),
		refresh:     tableFunc(t, "refresh"),
		init:        tableFunc(t, "init"),
		shutdown:    tableFunc(t, "shutdown"),
	}
	if reg.desc.ID == "" {
		return nil, plugin.ErrEmptyID
	}
	if reg.desc.Name == "" {
		reg.desc.Name = reg.desc.ID
	}
	if v := tableString(t, "version"); v != "" {
		ver, err := plugin.ParseVersion(v)
		if err != nil {
			return nil, err
		}
		reg.desc.Version = ver
	}

	if ft := tableTable(t, "feature"); ft != nil {
		typ, _ := plugin.ParseFeatureType(tableString(ft, "type"))
		reg.feature = &plugin.FeatureSpec{
			ID:   tableString(ft, "id"),
			Name: tableString(ft, "name"),
			Type: typ,
		}
	}

	if st := tableTable(t, "settings"); st != nil {
		if m, ok := toGo(st).(map[string]any); ok {
			reg.defaults = m
		} else {
			return nil, fmt.Errorf("settings must be a table with string keys")
		}
	}
	return reg, nil
}
