package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/gwillem/rover/pkg/robot"
	"github.com/gwillem/rover/pkg/sensor"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

var baudRates = []int{9600, 57600, 115200, 230400}

type SetupCommand struct{}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("Rover Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━"))
	fmt.Println()

	cfg, err := robot.LoadConfigFrom(opts.Config)
	if errors.Is(err, os.ErrNotExist) {
		cfg = robot.DefaultConfig()
	} else if err != nil {
		return err
	}

	// Step 1: Sensor port
	fmt.Println(subHeaderStyle.Render("━━━ Sensor feed ━━━"))
	fmt.Println()
	if err := chooseSerial(cfg); err != nil {
		return err
	}

	// Step 2: Chassis and camera
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Chassis ━━━"))
	fmt.Println()
	if err := askChassis(cfg); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.SaveTo(opts.Config); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.Config)
	fmt.Println()
	fmt.Println("Check the sensor feed with: " + headerStyle.Render("rover sensors"))
	fmt.Println("Start the rover with:       " + headerStyle.Render("rover serve"))
	return nil
}

func chooseSerial(cfg *robot.Config) error {
	ports, err := sensor.Ports()
	if err != nil {
		fmt.Printf("Error listing ports: %v\n", err)
	}

	var options []huh.Option[string]
	for _, p := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(p, "Bluetooth") {
			continue
		}
		options = append(options, huh.NewOption(p, p))
	}
	if len(options) == 0 {
		fmt.Println("No serial ports found. Keeping " + cfg.Serial.Port + ".")
		fmt.Println("Make sure the sensor board is connected.")
	}

	port := cfg.Serial.Port
	baud := strconv.Itoa(cfg.Serial.BaudRate)
	var baudOptions []huh.Option[string]
	for _, b := range baudRates {
		s := strconv.Itoa(b)
		baudOptions = append(baudOptions, huh.NewOption(s, s))
	}

	var fields []huh.Field
	if len(options) > 0 {
		fields = append(fields, huh.NewSelect[string]().
			Title("Which port is the sensor board on?").
			Description("It prints yaw,pitch,roll,rpm and speed lines").
			Options(options...).
			Value(&port))
	}
	fields = append(fields, huh.NewSelect[string]().
		Title("Baud rate").
		Options(baudOptions...).
		Value(&baud))

	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return err
	}

	rate, err := strconv.Atoi(baud)
	if err != nil {
		return err
	}
	cfg.Serial.Port = port
	cfg.Serial.BaudRate = rate
	return nil
}

func askChassis(cfg *robot.Config) error {
	wheel := strconv.FormatFloat(cfg.Geometry.WheelDiameterMM, 'f', -1, 64)
	track := strconv.FormatFloat(cfg.Geometry.TrackWidthMM, 'f', -1, 64)
	cameraOn := cfg.Camera.Enabled

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Wheel diameter (mm)").
				Value(&wheel).
				Validate(positiveNumber),
			huh.NewInput().
				Title("Track width (mm)").
				Description("Distance between the left and right wheel centers").
				Value(&track).
				Validate(positiveNumber),
			huh.NewConfirm().
				Title("Enable the camera?").
				Value(&cameraOn),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	cfg.Geometry.WheelDiameterMM, _ = strconv.ParseFloat(strings.TrimSpace(wheel), 64)
	cfg.Geometry.TrackWidthMM, _ = strconv.ParseFloat(strings.TrimSpace(track), 64)
	cfg.Camera.Enabled = cameraOn
	return nil
}

func positiveNumber(s string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v <= 0 {
		return errors.New("enter a positive number")
	}
	return nil
}
