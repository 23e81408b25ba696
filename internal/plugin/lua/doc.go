// Package lua loads plugins written in Lua.
//
// A ".lua" module is executed once in a sandboxed gopher-lua state. The
// script registers one plugin per call to clipai.register:
//
//	local clipai = require("clipai")
//
//	clipai.register{
//	    id = "Shout",
//	    name = "Shout",
//	    version = "1.0.0",
//	    author = "someone",
//	    description = "Uppercases clipboard text",
//	    feature = { id = "Shout", name = "Shout", type = "Other" },
//	    process_text = function(text)
//	        return string.upper(text)
//	    end,
//	    refresh = function()
//	        clipai.log("info", "prefix is " .. clipai.setting("Prefix", ""))
//	    end,
//	}
//
// Each registration becomes one loader.Factory. Registrations with a
// feature table produce feature providers backed by plugin.FeatureBase;
// the rest are plain plugins.
//
// All plugins of one module share the module's State. Calls are
// serialized on the state's mutex and honor context cancellation, so a
// runaway script is stopped when the caller's deadline passes.
//
// # Host API
//
// Inside callbacks the script can use:
//
//	clipai.log(level, message)        -- level: trace|debug|info|warning|error|critical|fatal
//	clipai.notify(title, message, type) -- type: info|success|warning|error
//	clipai.setting(name, default)     -- typed read of the plugin's setting
//	clipai.set_setting(name, value)   -- write and save
//	clipai.data_path()                -- private data directory
//
// Outside a callback (while the module body runs) log writes to the loader
// log and the other functions raise an error.
package lua
