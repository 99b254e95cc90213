package sgp4

import (
	"math"
	"time"
)

// JulianDate converts a UTC time to a Julian Date.
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	sec := float64(t.Second()) + float64(t.Nanosecond())/1e9
	return jday(t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), sec)
}

// jday computes the Julian Date from calendar components (Vallado, jday).
func jday(year, mon, day, hr, minute int, sec float64) float64 {
	return 367.0*float64(year) -
		math.Floor(7.0*(float64(year)+math.Floor((float64(mon)+9.0)/12.0))*0.25) +
		math.Floor(275.0*float64(mon)/9.0) +
		float64(day) + 1721013.5 +
		((sec/60.0+float64(minute))/60.0+float64(hr))/24.0
}

// epochJulianDate converts a TLE epoch (two-digit year, fractional day of
// year) to a Julian Date. Years 57-99 map to the 1900s, 00-56 to the 2000s.
func epochJulianDate(epochYear int, epochDays float64) float64 {
	year := epochYear
	if year < 57 {
		year += 2000
	} else {
		year += 1900
	}
	mon, day, hr, minute, sec := days2mdhms(year, epochDays)
	return jday(year, mon, day, hr, minute, sec)
}

// days2mdhms converts a fractional day of year to calendar components.
func days2mdhms(year int, days float64) (mon, day, hr, minute int, sec float64) {
	lmonth := [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
	if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
		lmonth[1] = 29
	}

	dayofyr := int(math.Floor(days))

	i := 1
	inttemp := 0
	for dayofyr > inttemp+lmonth[i-1] && i < 12 {
		inttemp += lmonth[i-1]
		i++
	}
	mon = i
	day = dayofyr - inttemp

	temp := (days - float64(dayofyr)) * 24.0
	hr = int(math.Floor(temp))
	temp = (temp - float64(hr)) * 60.0
	minute = int(math.Floor(temp))
	sec = (temp - float64(minute)) * 60.0
	return mon, day, hr, minute, sec
}

// gstime computes Greenwich sidereal time in radians for a Julian Date (UT1).
func gstime(jdut1 float64) float64 {
	tut1 := (jdut1 - 2451545.0) / 36525.0
	temp := -6.2e-6*tut1*tut1*tut1 +
		0.093104*tut1*tut1 +
		(876600.0*3600.0+8640184.812866)*tut1 +
		67310.54841
	temp = math.Mod(temp*deg2rad/240.0, twoPi)
	if temp < 0.0 {
		temp += twoPi
	}
	return temp
}
