package constants

import "time"

// Application constants
const (
	ApplicationName  = "twc"
	ApplicationTitle = "twin-pane file commander"
)

// UI constants
const (
	// Keyboard navigation
	FastNavigationStep = 20

	// Panel rows reserved for title, header, status and help lines
	ReservedRows = 6

	// Progress bar width in cells
	ProgressBarWidth = 40
)

// Directory watcher constants
const (
	WatcherDelay = 150 * time.Millisecond
)

// Operation engine constants
const (
	HistoryMax = 100
)

// Entry colors (lipgloss color strings)
const (
	RegularFileColor = "#DCDCDC" // Light gray
	DirectoryColor   = "#87CEFA" // Light sky blue
	SymlinkColor     = "#FFA500" // Orange
	HiddenFileColor  = "#696969" // Dim gray
	SelectionColor   = "#FFD75F" // Yellow
	CursorBackground = "#3A5F8A"
	ActiveBorder     = "#87CEFA"
	InactiveBorder   = "#444444"
	ErrorColor       = "#FF5F5F"
)

// Configuration constants
const (
	ConfigFileName   = "config.json"
	LogFileName      = "twc.log"
	DefaultSortBy    = "name"
	DefaultSortOrder = "asc"
	DefaultLogLevel  = "info"
)
